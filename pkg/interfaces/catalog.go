//go:generate go run go.uber.org/mock/mockgen -source=catalog.go -destination=../../mocks/mock_catalog.go -package=mocks

package interfaces

import "context"

// Catalog answers whether a video session exists in the course catalog.
// Implementations return (false, nil) for an unknown id and a non-nil error
// only when the store itself could not be asked.
type Catalog interface {
	SessionExists(ctx context.Context, sessionID string) (bool, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}
