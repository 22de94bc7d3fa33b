// Package session answers whether a session id names a live video session.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/metrics"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

// DefaultLookupTimeout bounds a single catalog lookup.
const DefaultLookupTimeout = 3 * time.Second

// Validator maps catalog answers onto the gateway's error vocabulary.
type Validator struct {
	catalog interfaces.Catalog
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewValidator creates a validator over catalog. A zero timeout uses DefaultLookupTimeout.
func NewValidator(catalog interfaces.Catalog, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Validator {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Validator{
		catalog: catalog,
		timeout: timeout,
		logger:  logger.Named("session"),
		metrics: m,
	}
}

// Validate returns nil when the session exists, interfaces.ErrSessionNotFound when
// the catalog has no such session, and interfaces.ErrValidatorUnavailable when the
// catalog could not answer. It never mutates anything.
func (v *Validator) Validate(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return interfaces.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	exists, err := v.catalog.SessionExists(ctx, sessionID)
	elapsed := time.Since(start).Seconds()

	switch {
	case err != nil:
		v.metrics.ObserveValidation(metrics.ResultUnavailable, elapsed)
		v.logger.Warn("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("%w: %v", interfaces.ErrValidatorUnavailable, err)
	case !exists:
		v.metrics.ObserveValidation(metrics.ResultNotFound, elapsed)
		return interfaces.ErrSessionNotFound
	default:
		v.metrics.ObserveValidation(metrics.ResultOK, elapsed)
		return nil
	}
}
