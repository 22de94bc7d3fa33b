package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

// BreakerSettings configures BreakerCatalog.
type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerCatalog stops calling a failing catalog until the breaker half-opens.
// A "not found" answer is a successful call and never trips the breaker, and
// neither does a lookup abandoned by its caller.
type BreakerCatalog struct {
	next   interfaces.Catalog
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewBreakerCatalog(next interfaces.Catalog, settings BreakerSettings, logger *zap.Logger) *BreakerCatalog {
	logger = logger.Named("catalog.breaker")
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}

	st := gobreaker.Settings{
		Name:        "session-catalog",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		// a caller that gave up says nothing about the catalog's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &BreakerCatalog{next: next, cb: gobreaker.NewCircuitBreaker(st), logger: logger}
}

func (b *BreakerCatalog) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.SessionExists(ctx, sessionID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, ErrCircuitOpen
	}
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// RegisterSession bypasses the breaker; only lookups on the join path are guarded.
func (b *BreakerCatalog) RegisterSession(ctx context.Context, session *VideoSession) error {
	w, ok := b.next.(SessionWriter)
	if !ok {
		return ErrReadOnly
	}
	return w.RegisterSession(ctx, session)
}

// State reports the breaker state for health output.
func (b *BreakerCatalog) State() string {
	return b.cb.State().String()
}

func (b *BreakerCatalog) HealthCheck(ctx context.Context) error {
	return b.next.HealthCheck(ctx)
}

func (b *BreakerCatalog) Close() error {
	return b.next.Close()
}
