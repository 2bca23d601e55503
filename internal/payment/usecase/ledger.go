package usecase

import (
	"context"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/kvstore"
)

const ledgerKeyPrefix = "webhook:event:"

// Ledger remembers accepted webhook event keys for a bounded time so redeliveries
// are recognised across handlers and replicas.
type Ledger struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewLedger creates a Ledger whose entries expire after ttl.
func NewLedger(store kvstore.Store, ttl time.Duration) *Ledger {
	return &Ledger{store: store, ttl: ttl}
}

// TryAccept records key and reports true for exactly one caller per key until it expires.
func (l *Ledger) TryAccept(ctx context.Context, key string) (bool, error) {
	accepted, err := l.store.SetNX(ctx, ledgerKeyPrefix+key, "1", l.ttl)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to record event key")
	}
	return accepted, nil
}

// Release forgets key so a later redelivery is processed again.
func (l *Ledger) Release(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, ledgerKeyPrefix+key); err != nil {
		return apperrors.Wrap(err, "failed to release event key")
	}
	return nil
}
