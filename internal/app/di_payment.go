package app

import (
	"fmt"

	inventoryRepository "github.com/allisson/payment-reconciler/internal/inventory/repository"
	"github.com/allisson/payment-reconciler/internal/config"
	"github.com/allisson/payment-reconciler/internal/metrics"
	paymentHTTP "github.com/allisson/payment-reconciler/internal/payment/http"
	paymentRepository "github.com/allisson/payment-reconciler/internal/payment/repository"
	"github.com/allisson/payment-reconciler/internal/payment/service"
	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
	"github.com/allisson/payment-reconciler/internal/provider"
	"github.com/allisson/payment-reconciler/internal/worker"
)

// PaymentRepository returns the payment repository based on database driver.
func (c *Container) PaymentRepository() (paymentUseCase.PaymentRepository, error) {
	var err error
	c.paymentRepositoryInit.Do(func() {
		c.paymentRepository, err = c.initPaymentRepository()
		if err != nil {
			c.initErrors["paymentRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentRepository"]; exists {
		return nil, storedErr
	}
	return c.paymentRepository, nil
}

// OrderRepository returns the order repository based on database driver.
func (c *Container) OrderRepository() (paymentUseCase.OrderRepository, error) {
	var err error
	c.orderRepositoryInit.Do(func() {
		c.orderRepository, err = c.initOrderRepository()
		if err != nil {
			c.initErrors["orderRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderRepository"]; exists {
		return nil, storedErr
	}
	return c.orderRepository, nil
}

// InventoryRepository returns the stock deduction collaborator based on database driver.
func (c *Container) InventoryRepository() (paymentUseCase.InventoryService, error) {
	var err error
	c.inventoryRepositoryInit.Do(func() {
		c.inventoryRepository, err = c.initInventoryRepository()
		if err != nil {
			c.initErrors["inventoryRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["inventoryRepository"]; exists {
		return nil, storedErr
	}
	return c.inventoryRepository, nil
}

// ProviderClient returns the payment provider API client.
func (c *Container) ProviderClient() paymentUseCase.ProviderClient {
	c.providerClientInit.Do(func() {
		c.providerClient = provider.NewClient(provider.Config{
			BaseURL:     c.config.ProviderBaseURL,
			AccessToken: c.config.ProviderAccessToken,
			Timeout:     c.config.ProviderTimeout,
		}, c.Logger())
	})
	return c.providerClient
}

// Normalizer returns the identity normalizer.
func (c *Container) Normalizer() *service.Normalizer {
	c.normalizerInit.Do(func() {
		c.normalizer = service.NewNormalizer()
	})
	return c.normalizer
}

// Gate returns the webhook authenticity gate.
func (c *Container) Gate() (paymentUseCase.AuthenticityGate, error) {
	var err error
	c.gateInit.Do(func() {
		c.gate, err = c.initGate()
		if err != nil {
			c.initErrors["gate"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["gate"]; exists {
		return nil, storedErr
	}
	return c.gate, nil
}

// Ledger returns the idempotency ledger.
func (c *Container) Ledger() (*paymentUseCase.Ledger, error) {
	var err error
	c.ledgerInit.Do(func() {
		store, storeErr := c.KVStore()
		if storeErr != nil {
			err = fmt.Errorf("failed to get kv store for ledger: %w", storeErr)
			c.initErrors["ledger"] = err
			return
		}
		c.ledger = paymentUseCase.NewLedger(store, c.config.IdempotencyTTL)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledger"]; exists {
		return nil, storedErr
	}
	return c.ledger, nil
}

// Backoff returns the polling backoff scheduler.
func (c *Container) Backoff() (*paymentUseCase.Backoff, error) {
	var err error
	c.backoffInit.Do(func() {
		store, storeErr := c.KVStore()
		if storeErr != nil {
			err = fmt.Errorf("failed to get kv store for backoff: %w", storeErr)
			c.initErrors["backoff"] = err
			return
		}
		c.backoff = paymentUseCase.NewBackoff(store, paymentUseCase.BackoffConfig{
			Base:        c.config.BackoffBase,
			Cap:         c.config.BackoffCap,
			MaxAttempts: c.config.BackoffMaxAttempts,
			StateTTL:    c.config.BackoffStateTTL,
			ClaimTTL:    2 * c.config.ReconcileTimeout,
		})
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["backoff"]; exists {
		return nil, storedErr
	}
	return c.backoff, nil
}

// Dispatcher returns the background reconciliation dispatcher. It is not started.
func (c *Container) Dispatcher() (*worker.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// ReconcileUseCase returns the reconciler.
func (c *Container) ReconcileUseCase() (paymentUseCase.ReconcileUseCase, error) {
	var err error
	c.reconcileUseCaseInit.Do(func() {
		c.reconcileUseCase, err = c.initReconcileUseCase()
		if err != nil {
			c.initErrors["reconcileUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reconcileUseCase"]; exists {
		return nil, storedErr
	}
	return c.reconcileUseCase, nil
}

// WebhookUseCase returns the webhook entry point.
func (c *Container) WebhookUseCase() (paymentUseCase.WebhookUseCase, error) {
	var err error
	c.webhookUseCaseInit.Do(func() {
		c.webhookUseCase, err = c.initWebhookUseCase()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["webhookUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhookUseCase, nil
}

// PollingUseCase returns the polling coordinator.
func (c *Container) PollingUseCase() (paymentUseCase.PollingUseCase, error) {
	var err error
	c.pollingUseCaseInit.Do(func() {
		c.pollingUseCase, err = c.initPollingUseCase()
		if err != nil {
			c.initErrors["pollingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["pollingUseCase"]; exists {
		return nil, storedErr
	}
	return c.pollingUseCase, nil
}

// PaymentHandler returns the HTTP handler for webhook and order status endpoints.
func (c *Container) PaymentHandler() (*paymentHTTP.PaymentHandler, error) {
	var err error
	c.paymentHandlerInit.Do(func() {
		c.paymentHandler, err = c.initPaymentHandler()
		if err != nil {
			c.initErrors["paymentHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentHandler"]; exists {
		return nil, storedErr
	}
	return c.paymentHandler, nil
}

// initPaymentRepository creates the payment repository based on the database driver.
func (c *Container) initPaymentRepository() (paymentUseCase.PaymentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for payment repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLPaymentRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLPaymentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOrderRepository creates the order repository based on the database driver.
func (c *Container) initOrderRepository() (paymentUseCase.OrderRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for order repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLOrderRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLOrderRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initInventoryRepository creates the inventory repository based on the database driver.
func (c *Container) initInventoryRepository() (paymentUseCase.InventoryService, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for inventory repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return inventoryRepository.NewPostgreSQLInventoryRepository(db), nil
	case "mysql":
		return inventoryRepository.NewMySQLInventoryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initGate parses the allowed networks and creates the authenticity gate.
func (c *Container) initGate() (paymentUseCase.AuthenticityGate, error) {
	store, err := c.KVStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get kv store for gate: %w", err)
	}

	cidrs, err := service.ParseCIDRs(config.SplitList(c.config.WebhookAllowedCIDRs))
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook allowed cidrs: %w", err)
	}

	return service.NewGate(service.GateConfig{
		Secret:       c.config.WebhookSecret,
		Production:   c.config.IsProduction(),
		Permissive:   c.config.WebhookPermissive,
		AllowedCIDRs: cidrs,
		RateLimit:    c.config.WebhookRateLimit,
		RateWindow:   c.config.WebhookRateWindow,
	}, store, c.Logger()), nil
}

// initDispatcher creates the dispatcher and exposes its queue depth when metrics are enabled.
func (c *Container) initDispatcher() (*worker.Dispatcher, error) {
	dispatcher := worker.NewDispatcher(worker.Config{
		Workers:    c.config.DispatchWorkers,
		QueueSize:  c.config.DispatchQueueSize,
		MaxRetries: c.config.DispatchMaxRetries,
		RetryDelay: c.config.DispatchRetryDelay,
		JobTimeout: c.config.ReconcileTimeout,
	}, c.Logger())

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for dispatcher: %w", err)
	}
	if metricsProvider != nil {
		err := metrics.RegisterQueueDepth(
			metricsProvider.MeterProvider(),
			c.config.MetricsNamespace,
			dispatcher.Pending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register dispatcher metrics: %w", err)
		}
	}

	return dispatcher, nil
}

// initReconcileUseCase creates the reconciler with all its dependencies.
func (c *Container) initReconcileUseCase() (paymentUseCase.ReconcileUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reconcile use case: %w", err)
	}

	paymentRepo, err := c.PaymentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment repository for reconcile use case: %w", err)
	}

	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for reconcile use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for reconcile use case: %w", err)
	}

	inventory, err := c.InventoryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory repository for reconcile use case: %w", err)
	}

	baseUseCase := paymentUseCase.NewReconcileUseCase(
		txManager,
		paymentRepo,
		orderRepo,
		outboxRepo,
		c.ProviderClient(),
		inventory,
		c.Normalizer(),
		c.config.ReconcileTimeout,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for reconcile use case: %w", err)
		}
		return paymentUseCase.NewReconcileUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initWebhookUseCase creates the webhook use case with all its dependencies.
func (c *Container) initWebhookUseCase() (paymentUseCase.WebhookUseCase, error) {
	gate, err := c.Gate()
	if err != nil {
		return nil, fmt.Errorf("failed to get gate for webhook use case: %w", err)
	}

	ledger, err := c.Ledger()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for webhook use case: %w", err)
	}

	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for webhook use case: %w", err)
	}

	reconciler, err := c.ReconcileUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reconcile use case for webhook use case: %w", err)
	}

	baseUseCase := paymentUseCase.NewWebhookUseCase(
		gate,
		ledger,
		dispatcher,
		reconciler,
		c.Normalizer(),
		paymentUseCase.WebhookConfig{Production: c.config.IsProduction()},
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for webhook use case: %w", err)
		}
		return paymentUseCase.NewWebhookUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initPollingUseCase creates the polling use case with all its dependencies.
func (c *Container) initPollingUseCase() (paymentUseCase.PollingUseCase, error) {
	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for polling use case: %w", err)
	}

	paymentRepo, err := c.PaymentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment repository for polling use case: %w", err)
	}

	reconciler, err := c.ReconcileUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reconcile use case for polling use case: %w", err)
	}

	backoff, err := c.Backoff()
	if err != nil {
		return nil, fmt.Errorf("failed to get backoff for polling use case: %w", err)
	}

	baseUseCase := paymentUseCase.NewPollingUseCase(
		orderRepo,
		paymentRepo,
		reconciler,
		backoff,
		c.config.PollMinInterval,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for polling use case: %w", err)
		}
		return paymentUseCase.NewPollingUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initPaymentHandler creates the payment HTTP handler.
func (c *Container) initPaymentHandler() (*paymentHTTP.PaymentHandler, error) {
	webhookUseCase, err := c.WebhookUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook use case for payment handler: %w", err)
	}

	pollingUseCase, err := c.PollingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get polling use case for payment handler: %w", err)
	}

	return paymentHTTP.NewPaymentHandler(webhookUseCase, pollingUseCase, c.Logger()), nil
}
