package app

import (
	"fmt"

	"github.com/allisson/payment-reconciler/internal/config"
	"github.com/allisson/payment-reconciler/internal/outbox/publisher"
	outboxRepository "github.com/allisson/payment-reconciler/internal/outbox/repository"
	outboxUseCase "github.com/allisson/payment-reconciler/internal/outbox/usecase"
	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// outboxRepositoryWithCreate is written by the reconciler and drained by the relay.
type outboxRepositoryWithCreate interface {
	paymentUseCase.OutboxEventRepository
	outboxUseCase.OutboxEventRepository
}

// closablePublisher is an event publisher that holds a connection.
type closablePublisher interface {
	outboxUseCase.EventPublisher
	Close() error
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxRepositoryWithCreate, error) {
	var err error
	c.outboxRepositoryInit.Do(func() {
		c.outboxRepository, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepository"]; exists {
		return nil, storedErr
	}
	return c.outboxRepository, nil
}

// EventPublisher returns the Kafka publisher, or a log publisher when no broker is configured.
func (c *Container) EventPublisher() outboxUseCase.EventPublisher {
	c.eventPublisherInit.Do(func() {
		c.eventPublisher = c.initEventPublisher()
	})
	return c.eventPublisher
}

// Relay returns the outbox relay.
func (c *Container) Relay() (*outboxUseCase.Relay, error) {
	var err error
	c.relayInit.Do(func() {
		c.relay, err = c.initRelay()
		if err != nil {
			c.initErrors["relay"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["relay"]; exists {
		return nil, storedErr
	}
	return c.relay, nil
}

// initOutboxRepository creates the outbox event repository based on the database driver.
func (c *Container) initOutboxRepository() (outboxRepositoryWithCreate, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initEventPublisher creates the publisher used by the relay.
func (c *Container) initEventPublisher() closablePublisher {
	brokers := config.SplitList(c.config.KafkaBrokers)
	if len(brokers) == 0 {
		return publisher.NewLogPublisher(c.Logger())
	}
	return publisher.NewKafkaPublisher(publisher.NewKafkaWriter(brokers), c.config.KafkaTopic, c.Logger())
}

// initRelay creates the outbox relay with all its dependencies.
func (c *Container) initRelay() (*outboxUseCase.Relay, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox relay: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox relay: %w", err)
	}

	relayConfig := outboxUseCase.Config{
		Interval:    c.config.OutboxInterval,
		BatchSize:   c.config.OutboxBatchSize,
		MaxAttempts: c.config.OutboxMaxRetries,
	}

	return outboxUseCase.NewRelay(relayConfig, txManager, outboxRepo, c.EventPublisher(), c.Logger()), nil
}
