// Package worker provides a bounded background dispatcher. Jobs are queued without
// blocking the caller and executed by at most Workers goroutines, each attempt under
// its own timeout, with exponential backoff between retryable failures.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("dispatcher queue is full")
	// ErrStopped is returned by Submit after Shutdown started or before Start.
	ErrStopped = errors.New("dispatcher is not running")
)

// Job is a unit of background work.
type Job struct {
	// Key identifies the job in logs.
	Key string
	// Run performs one attempt.
	Run func(ctx context.Context) error
	// Retryable reports whether a failed attempt should be retried. Nil never retries.
	Retryable func(err error) bool
	// OnGiveUp is called once when the job fails for good, including when the
	// dispatcher shuts down before the job completes.
	OnGiveUp func(err error)
}

// Config configures a Dispatcher.
type Config struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	JobTimeout    time.Duration
}

// Dispatcher runs submitted jobs in the background.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Job
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	running bool
	stopped bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	loopDone  chan struct{}
	inflight  sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher. Call Start before submitting jobs.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	return &Dispatcher{
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan Job, cfg.QueueSize),
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		loopDone: make(chan struct{}),
	}
}

// Start begins consuming the queue. Jobs run under a context derived from ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running || d.stopped {
		return
	}
	d.running = true
	d.runCtx, d.cancelRun = context.WithCancel(ctx)

	d.logger.Info("starting reconciliation dispatcher",
		slog.Int("workers", d.cfg.Workers),
		slog.Int("queue_size", d.cfg.QueueSize),
	)

	go d.loop()
}

// Submit enqueues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running || d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Shutdown stops accepting jobs and waits for queued and running jobs to finish.
// If ctx expires first, running jobs are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	wasRunning := d.running
	close(d.queue)
	d.mu.Unlock()

	if !wasRunning {
		return nil
	}

	d.logger.Info("stopping reconciliation dispatcher", slog.Int("pending", len(d.queue)))

	done := make(chan struct{})
	go func() {
		<-d.loopDone
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancelRun()
		return nil
	case <-ctx.Done():
		d.cancelRun()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.loopDone)

	for job := range d.queue {
		if err := d.sem.Acquire(d.runCtx, 1); err != nil {
			d.giveUp(job, err)
			continue
		}

		d.inflight.Add(1)
		go func(job Job) {
			defer d.inflight.Done()
			defer d.sem.Release(1)
			d.execute(job)
		}(job)
	}
}

func (d *Dispatcher) execute(job Job) {
	for attempt := 0; ; attempt++ {
		if err := d.runCtx.Err(); err != nil {
			d.giveUp(job, err)
			return
		}

		ctx, cancel := context.WithTimeout(d.runCtx, d.cfg.JobTimeout)
		err := job.Run(ctx)
		cancel()

		if err == nil {
			return
		}

		retryable := job.Retryable != nil && job.Retryable(err)
		if !retryable || attempt >= d.cfg.MaxRetries {
			d.logger.Warn("job failed",
				slog.String("job", job.Key),
				slog.Int("attempts", attempt+1),
				slog.Bool("retryable", retryable),
				slog.Any("error", err),
			)
			d.giveUp(job, err)
			return
		}

		delay := d.retryDelay(attempt)
		d.logger.Debug("retrying job",
			slog.String("job", job.Key),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-d.runCtx.Done():
			timer.Stop()
			d.giveUp(job, d.runCtx.Err())
			return
		}
	}
}

// retryDelay doubles the base delay per attempt up to MaxRetryDelay.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.cfg.RetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxRetryDelay {
			return d.cfg.MaxRetryDelay
		}
	}
	return delay
}

func (d *Dispatcher) giveUp(job Job, err error) {
	if job.OnGiveUp != nil {
		job.OnGiveUp(err)
	}
}
