package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

const defaultGuardInterval = 5 * time.Minute

type tokenVerifier interface {
	VerifyToken(ctx context.Context) (*User, error)
}

// GuardParams configure a Guard.
type GuardParams struct {
	Verifier  tokenVerifier
	Interval  time.Duration
	OnExpired func(ctx context.Context)
	Logger    *logger.Logger
}

// Guard re-validates the session on a fixed cadence and reports expiry once.
type Guard struct {
	verifier  tokenVerifier
	interval  time.Duration
	onExpired func(ctx context.Context)
	once      sync.Once
	logg      *logger.Logger
}

func NewGuard(params GuardParams) (*Guard, error) {
	if params.Verifier == nil {
		return nil, fmt.Errorf("token verifier required")
	}
	if params.OnExpired == nil {
		return nil, fmt.Errorf("expiry callback required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultGuardInterval
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Guard{
		verifier:  params.Verifier,
		interval:  interval,
		onExpired: params.OnExpired,
		logg:      logg,
	}, nil
}

// Run checks the session immediately and then on every tick. It returns nil
// after the session expired and ctx.Err() when the context ends first.
func (g *Guard) Run(ctx context.Context) error {
	if g.check(ctx) {
		return nil
	}
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.check(ctx) {
				return nil
			}
		}
	}
}

// check reports whether the session is gone.
func (g *Guard) check(ctx context.Context) bool {
	_, err := g.verifier.VerifyToken(ctx)
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		g.once.Do(func() {
			g.logg.Info(ctx, "session expired; logging out")
			g.onExpired(ctx)
		})
		return true
	}
	g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "token check failed; keeping session")
	return false
}
