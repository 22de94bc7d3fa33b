//go:generate go run go.uber.org/mock/mockgen -source=connection.go -destination=../../mocks/mock_connection.go -package=mocks

package interfaces

// Connection is one live bidirectional channel to one client process.
// ARCHITECTURAL DISCOVERY: the hub and dispatcher only see this contract, so the
// gorilla transport and test fakes are interchangeable.
type Connection interface {
	// ID returns the identity assigned by the gateway at connect time.
	ID() string

	// Send queues an event for delivery. It never blocks; a full or closed
	// connection returns an error and the event is dropped.
	Send(v any) error

	// Close tears down the transport. Safe to call more than once.
	Close() error
}
