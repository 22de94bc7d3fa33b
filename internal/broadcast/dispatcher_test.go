package broadcast

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/metrics"
	wsconn "github.com/Kaushik-110000/eduapp/internal/websocket"
	"github.com/Kaushik-110000/eduapp/mocks"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

func TestDispatcher_BroadcastReachesEveryMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	msg := &types.Message{ID: "m1", Seq: 1, SessionID: "S1", Text: "hello"}
	want := types.Event{Event: types.EventNewMessage, Data: msg}

	members := make([]interfaces.Connection, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		c := mocks.NewMockConnection(ctrl)
		c.EXPECT().ID().Return(id).AnyTimes()
		c.EXPECT().Send(want).Return(nil).Times(1)
		members = append(members, c)
	}

	d := NewDispatcher(zap.NewNop(), metrics.New())
	require.Equal(t, 3, d.Broadcast(members, msg))
}

func TestDispatcher_FailedMemberDoesNotStopOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	msg := &types.Message{ID: "m1", Seq: 1, SessionID: "S1", Text: "hello"}

	slow := mocks.NewMockConnection(ctrl)
	slow.EXPECT().ID().Return("slow").AnyTimes()
	slow.EXPECT().Send(gomock.Any()).Return(errors.New("send buffer full"))
	slow.EXPECT().Close().Return(nil).Times(1)

	healthy := mocks.NewMockConnection(ctrl)
	healthy.EXPECT().ID().Return("healthy").AnyTimes()
	healthy.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

	d := NewDispatcher(zap.NewNop(), nil)
	require.Equal(t, 1, d.Broadcast([]interfaces.Connection{slow, healthy}, msg))
}

func TestDispatcher_ReplayTargetsOneConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := []*types.Message{{Seq: 1, Text: "one"}, {Seq: 2, Text: "two"}}

	joiner := mocks.NewMockConnection(ctrl)
	joiner.EXPECT().Send(types.Event{
		Event: types.EventHistory,
		Data:  types.HistoryPayload{SessionID: "S1", Messages: history},
	}).Return(nil)

	d := NewDispatcher(zap.NewNop(), nil)
	require.True(t, d.Replay(joiner, "S1", history))
}

func TestDispatcher_ReplayEmptyHistoryIsNotNil(t *testing.T) {
	ctrl := gomock.NewController(t)

	joiner := mocks.NewMockConnection(ctrl)
	joiner.EXPECT().Send(gomock.Any()).DoAndReturn(func(v any) error {
		payload := v.(types.Event).Data.(types.HistoryPayload)
		require.NotNil(t, payload.Messages)
		require.Empty(t, payload.Messages)
		return nil
	})

	d := NewDispatcher(zap.NewNop(), nil)
	require.True(t, d.Replay(joiner, "S1", nil))
}

// TestDispatcher_StalledMemberDoesNotDelayBroadcast uses a real connection whose
// client stopped reading: the failed delivery closes it without holding up the
// caller or the other members.
func TestDispatcher_StalledMemberDoesNotDelayBroadcast(t *testing.T) {
	stalled := stalledConnection(t)

	ctrl := gomock.NewController(t)
	healthy := mocks.NewMockConnection(ctrl)
	healthy.EXPECT().ID().Return("healthy").AnyTimes()
	healthy.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

	d := NewDispatcher(zap.NewNop(), metrics.New())
	msg := &types.Message{ID: "m1", Seq: 1, SessionID: "S1", Text: "hello"}

	start := time.Now()
	delivered := d.Broadcast([]interfaces.Connection{stalled, healthy}, msg)
	elapsed := time.Since(start)

	require.Equal(t, 1, delivered)
	require.Less(t, elapsed, 100*time.Millisecond, "broadcast waited on a stalled member")

	select {
	case <-stalled.Done():
	case <-time.After(time.Second):
		t.Fatal("stalled member was not closed")
	}
}

func stalledConnection(t *testing.T) *wsconn.Connection {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	accepted := make(chan *wsconn.Connection, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- wsconn.NewConnection(ws, wsconn.Options{SendBufferSize: 1}, zap.NewNop())
	}))
	t.Cleanup(server.Close)

	// the client never reads
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var conn *wsconn.Connection
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}
	t.Cleanup(func() { _ = conn.Close() })

	payload := strings.Repeat("x", 1<<20)
	full := 0
	for i := 0; i < 512 && full < 3; i++ {
		if err := conn.Send(payload); errors.Is(err, wsconn.ErrSendBufferFull) {
			full++
			time.Sleep(20 * time.Millisecond)
		}
	}
	require.Equal(t, 3, full, "send queue never filled")
	return conn
}
