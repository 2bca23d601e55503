package usecase

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/kvstore"
)

// BackoffConfig configures the polling backoff schedule.
type BackoffConfig struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
	// StateTTL bounds how long per-order state is retained after the last attempt.
	StateTTL time.Duration
	// ClaimTTL bounds how long a check slot stays held if its holder never releases it.
	ClaimTTL time.Duration
}

// BackoffState is the per-order polling state.
type BackoffState struct {
	Attempts  int64
	LastCheck time.Time
}

// Backoff decides when an order's payment may be checked against the provider again.
// The delay after n recorded attempts is min(Base*2^n, Cap).
type Backoff struct {
	store kvstore.Store
	cfg   BackoffConfig
	now   func() time.Time
}

// NewBackoff creates a Backoff scheduler backed by store.
func NewBackoff(store kvstore.Store, cfg BackoffConfig) *Backoff {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	return &Backoff{store: store, cfg: cfg, now: time.Now}
}

func attemptsKey(orderID int64) string {
	return "poll:attempts:" + strconv.FormatInt(orderID, 10)
}

func lastCheckKey(orderID int64) string {
	return "poll:last_check:" + strconv.FormatInt(orderID, 10)
}

func claimKey(orderID int64) string {
	return "poll:claim:" + strconv.FormatInt(orderID, 10)
}

// Delay returns the wait that follows the given number of attempts.
func (b *Backoff) Delay(attempts int64) time.Duration {
	delay := b.cfg.Base
	for i := int64(0); i < attempts; i++ {
		delay *= 2
		if delay >= b.cfg.Cap {
			return b.cfg.Cap
		}
	}
	if delay > b.cfg.Cap {
		return b.cfg.Cap
	}
	return delay
}

// State returns the stored state. A missing entry is the zero state.
func (b *Backoff) State(ctx context.Context, orderID int64) (BackoffState, error) {
	var state BackoffState

	raw, err := b.store.Get(ctx, attemptsKey(orderID))
	switch {
	case apperrors.Is(err, kvstore.ErrKeyNotFound):
	case err != nil:
		return state, apperrors.Wrap(err, "failed to read poll attempts")
	default:
		if state.Attempts, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return state, apperrors.Wrap(err, "invalid poll attempts value")
		}
	}

	raw, err = b.store.Get(ctx, lastCheckKey(orderID))
	switch {
	case apperrors.Is(err, kvstore.ErrKeyNotFound):
	case err != nil:
		return state, apperrors.Wrap(err, "failed to read poll last check")
	default:
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return state, apperrors.Wrap(err, "invalid poll last check value")
		}
		state.LastCheck = time.UnixMilli(ms)
	}

	return state, nil
}

// NextCheckIn returns how long until the next check is due. Zero means now.
func (b *Backoff) NextCheckIn(state BackoffState) time.Duration {
	if state.LastCheck.IsZero() {
		return 0
	}
	due := state.LastCheck.Add(b.Delay(state.Attempts))
	if wait := due.Sub(b.now()); wait > 0 {
		return wait
	}
	return 0
}

// ShouldCheckNow reports whether the provider may be queried for the order.
func (b *Backoff) ShouldCheckNow(state BackoffState) bool {
	return !b.MaxAttemptsReached(state) && b.NextCheckIn(state) == 0
}

// MaxAttemptsReached reports whether polling should stop.
func (b *Backoff) MaxAttemptsReached(state BackoffState) bool {
	return b.cfg.MaxAttempts > 0 && state.Attempts >= int64(b.cfg.MaxAttempts)
}

// Claim atomically takes the order's check slot. Only the holder may query the provider;
// it must re-read the state afterwards and call Release when done. A false result means
// another check is in flight.
func (b *Backoff) Claim(ctx context.Context, orderID int64) (bool, error) {
	ok, err := b.store.SetNX(ctx, claimKey(orderID), "1", b.cfg.ClaimTTL)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to claim poll slot")
	}
	return ok, nil
}

// Release frees the order's check slot.
func (b *Backoff) Release(ctx context.Context, orderID int64) error {
	if err := b.store.Delete(ctx, claimKey(orderID)); err != nil {
		return apperrors.Wrap(err, "failed to release poll slot")
	}
	return nil
}

// RecordAttempt counts an unproductive check and returns the updated state.
func (b *Backoff) RecordAttempt(ctx context.Context, orderID int64) (BackoffState, error) {
	attempts, err := b.store.Incr(ctx, attemptsKey(orderID), b.cfg.StateTTL)
	if err != nil {
		return BackoffState{}, apperrors.Wrap(err, "failed to record poll attempt")
	}

	now := b.now()
	value := strconv.FormatInt(now.UnixMilli(), 10)
	if err := b.store.Set(ctx, lastCheckKey(orderID), value, b.cfg.StateTTL); err != nil {
		return BackoffState{}, apperrors.Wrap(err, "failed to record poll last check")
	}

	return BackoffState{Attempts: attempts, LastCheck: time.UnixMilli(now.UnixMilli())}, nil
}

// RecordSuccess clears the order's state.
func (b *Backoff) RecordSuccess(ctx context.Context, orderID int64) error {
	if err := b.store.Delete(ctx, attemptsKey(orderID), lastCheckKey(orderID), claimKey(orderID)); err != nil {
		return apperrors.Wrap(err, "failed to reset poll state")
	}
	return nil
}
