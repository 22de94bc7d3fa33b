package interfaces_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

type stubConnection struct{ id string }

func (s *stubConnection) ID() string       { return s.id }
func (s *stubConnection) Send(v any) error { return nil }
func (s *stubConnection) Close() error     { return nil }

type stubCatalog struct{}

func (stubCatalog) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	return sessionID == "known", nil
}
func (stubCatalog) HealthCheck(ctx context.Context) error { return nil }
func (stubCatalog) Close() error                          { return nil }

func TestConnection_InterfaceContract(t *testing.T) {
	var conn interfaces.Connection = &stubConnection{id: "c1"}

	if conn.ID() != "c1" {
		t.Errorf("Expected id c1, got %s", conn.ID())
	}
	_ = conn.Send(struct{}{})
	_ = conn.Close()
}

func TestCatalog_InterfaceContract(t *testing.T) {
	var catalog interfaces.Catalog = stubCatalog{}
	ctx := context.Background()

	exists, err := catalog.SessionExists(ctx, "known")
	if err != nil || !exists {
		t.Errorf("Expected known session to exist, got %v, %v", exists, err)
	}
	_ = catalog.HealthCheck(ctx)
	_ = catalog.Close()
}

func TestErrors_Distinct(t *testing.T) {
	all := []error{
		interfaces.ErrSessionNotFound,
		interfaces.ErrValidatorUnavailable,
		interfaces.ErrRoomNotFound,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
