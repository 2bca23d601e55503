package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/kvstore"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

// AuthRequest carries everything the gate inspects about an inbound webhook.
type AuthRequest struct {
	SourceIP        string
	SignatureHeader string
	RequestID       string
	DataID          string
}

// GateConfig configures the authenticity gate.
type GateConfig struct {
	// Secret is the shared HMAC secret. Empty disables signature checks outside production
	// and rejects every request in production.
	Secret       string
	Production   bool
	Permissive   bool
	AllowedCIDRs []netip.Prefix
	RateLimit    int
	RateWindow   time.Duration
}

// ParseCIDRs parses a list of CIDR strings. Bare addresses are accepted as single-host prefixes.
func ParseCIDRs(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, value := range values {
		if prefix, err := netip.ParsePrefix(value); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", value, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Gate decides whether an inbound webhook may be processed. Checks run in order
// (signature, source network, rate) and stop at the first failure.
type Gate struct {
	cfg    GateConfig
	store  kvstore.Store
	logger *slog.Logger
}

// NewGate creates a Gate. store backs the per-source rate window.
func NewGate(cfg GateConfig, store kvstore.Store, logger *slog.Logger) *Gate {
	if cfg.Permissive {
		logger.Warn("webhook authenticity checks disabled (permissive mode)")
	} else if cfg.Secret == "" && !cfg.Production {
		logger.Warn("webhook secret not configured, signature verification skipped")
	}
	return &Gate{cfg: cfg, store: store, logger: logger}
}

// Accept returns nil when the request passes every check, domain.ErrAuthenticityFailure
// when it fails one, or an infrastructure error when the rate window cannot be read.
func (g *Gate) Accept(ctx context.Context, req AuthRequest) error {
	if g.cfg.Permissive {
		return nil
	}

	if err := g.checkSignature(req); err != nil {
		return err
	}

	if err := g.checkSource(req.SourceIP); err != nil {
		return err
	}

	return g.checkRate(ctx, req.SourceIP)
}

func (g *Gate) checkSignature(req AuthRequest) error {
	if g.cfg.Secret == "" {
		if g.cfg.Production {
			g.logger.Error("rejecting webhook: no secret configured in production")
			return apperrors.Wrap(domain.ErrAuthenticityFailure, "signature secret not configured")
		}
		return nil
	}

	if req.SignatureHeader == "" {
		return apperrors.Wrap(domain.ErrAuthenticityFailure, "missing signature")
	}

	if !VerifySignature(g.cfg.Secret, req.SignatureHeader, req.DataID, req.RequestID) {
		g.logger.Warn("webhook signature mismatch",
			slog.String("source_ip", req.SourceIP),
			slog.String("request_id", req.RequestID),
		)
		return apperrors.Wrap(domain.ErrAuthenticityFailure, "signature mismatch")
	}

	return nil
}

func (g *Gate) checkSource(sourceIP string) error {
	if len(g.cfg.AllowedCIDRs) == 0 {
		return nil
	}

	addr, err := netip.ParseAddr(sourceIP)
	if err != nil {
		return apperrors.Wrap(domain.ErrAuthenticityFailure, "unparseable source address")
	}
	addr = addr.Unmap()

	if !g.cfg.Production && addr.IsLoopback() {
		return nil
	}

	for _, prefix := range g.cfg.AllowedCIDRs {
		if prefix.Contains(addr) {
			return nil
		}
	}

	g.logger.Warn("webhook from disallowed network", slog.String("source_ip", sourceIP))
	return apperrors.Wrap(domain.ErrAuthenticityFailure, "source not allowed")
}

func (g *Gate) checkRate(ctx context.Context, sourceIP string) error {
	if g.cfg.RateLimit <= 0 {
		return nil
	}

	count, err := g.store.Incr(ctx, "webhook:rate:"+sourceIP, g.cfg.RateWindow)
	if err != nil {
		return fmt.Errorf("webhook rate window: %w", err)
	}

	if count > int64(g.cfg.RateLimit) {
		g.logger.Warn("webhook rate limit exceeded",
			slog.String("source_ip", sourceIP),
			slog.Int64("count", count),
		)
		return apperrors.Wrap(domain.ErrAuthenticityFailure, "rate limit exceeded")
	}

	return nil
}
