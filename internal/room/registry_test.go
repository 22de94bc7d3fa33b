package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

type stubConn struct{ id string }

func (s *stubConn) ID() string     { return s.id }
func (s *stubConn) Send(any) error { return nil }
func (s *stubConn) Close() error   { return nil }

func conn(id string) interfaces.Connection { return &stubConn{id: id} }

func textMessage(text string) types.Message {
	return types.Message{Text: text, Author: types.Author{ID: "u1", Name: "Ada"}}
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("msg-%d", n)
	}
	return r
}

func TestRegistry_EnsureRoomIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	_, created, err := r.EnsureRoom("S1")
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 5; i++ {
		_, created, err = r.EnsureRoom("S1")
		require.NoError(t, err)
		require.False(t, created)
	}
	require.Len(t, r.Snapshot(), 1)

	_, _, err = r.EnsureRoom("")
	require.ErrorIs(t, err, ErrEmptySessionID)
}

func TestRegistry_ConcurrentEnsureRoom(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := r.EnsureRoom("S1")
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, createdCount)
	require.Equal(t, 1, r.Stats().Rooms)
}

func TestRegistry_AddMember(t *testing.T) {
	r := newTestRegistry()

	require.ErrorIs(t, r.AddMember("S1", conn("a")), interfaces.ErrRoomNotFound)
	require.ErrorIs(t, r.AddMember("S1", nil), ErrNilConnection)

	_, _, _ = r.EnsureRoom("S1")
	require.NoError(t, r.AddMember("S1", conn("a")))
	require.NoError(t, r.AddMember("S1", conn("a")))
	require.NoError(t, r.AddMember("S1", conn("b")))

	members := r.Members("S1")
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].ID())
	assert.Equal(t, "b", members[1].ID())
	assert.True(t, r.IsMember("S1", "a"))
	assert.False(t, r.IsMember("S1", "c"))
	assert.False(t, r.IsMember("S2", "a"))
}

func TestRegistry_RemoveLastMemberTearsDown(t *testing.T) {
	r := newTestRegistry()
	_, _, _ = r.EnsureRoom("S1")
	require.NoError(t, r.AddMember("S1", conn("a")))
	_, err := r.AppendMessage("S1", textMessage("hi"))
	require.NoError(t, err)

	removed, tornDown := r.RemoveMember("S1", "a")
	require.True(t, removed)
	require.True(t, tornDown)

	_, ok := r.Room("S1")
	require.False(t, ok)
	require.Empty(t, r.GetHistory("S1"))
	require.Empty(t, r.SessionsOf("a"))

	removed, tornDown = r.RemoveMember("S1", "a")
	require.False(t, removed)
	require.False(t, tornDown)

	info, created, err := r.EnsureRoom("S1")
	require.NoError(t, err)
	require.True(t, created)
	require.Zero(t, info.Messages)
}

func TestRegistry_RemoveOneOfSeveralKeepsHistory(t *testing.T) {
	r := newTestRegistry()
	_, _, _ = r.EnsureRoom("S1")
	require.NoError(t, r.AddMember("S1", conn("a")))
	require.NoError(t, r.AddMember("S1", conn("b")))
	_, err := r.AppendMessage("S1", textMessage("hello"))
	require.NoError(t, err)

	removed, tornDown := r.RemoveMember("S1", "b")
	require.True(t, removed)
	require.False(t, tornDown)

	info, ok := r.Room("S1")
	require.True(t, ok)
	require.Equal(t, 1, info.Members)
	require.Equal(t, 1, info.Messages)
	require.Equal(t, "hello", r.GetHistory("S1")[0].Text)
}

func TestRegistry_RemoveMemberFromAll(t *testing.T) {
	r := newTestRegistry()
	for _, s := range []string{"S1", "S2", "S3"} {
		_, _, _ = r.EnsureRoom(s)
		require.NoError(t, r.AddMember(s, conn("a")))
	}
	require.NoError(t, r.AddMember("S2", conn("b")))

	left := r.RemoveMemberFromAll("a")
	require.Equal(t, []string{"S1", "S2", "S3"}, left)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "S2", snapshot[0].SessionID)
	require.Equal(t, 1, snapshot[0].Members)

	require.Empty(t, r.RemoveMemberFromAll("a"))
	require.Empty(t, r.RemoveMemberFromAll("never-joined"))
}

func TestRegistry_AppendMessage(t *testing.T) {
	r := newTestRegistry()

	_, err := r.AppendMessage("S1", textMessage("lost"))
	require.ErrorIs(t, err, interfaces.ErrRoomNotFound)
	require.Empty(t, r.Snapshot())

	_, _, _ = r.EnsureRoom("S1")
	_, _, _ = r.EnsureRoom("S2")

	first, err := r.AppendMessage("S1", textMessage("one"))
	require.NoError(t, err)
	second, err := r.AppendMessage("S1", textMessage("two"))
	require.NoError(t, err)
	other, err := r.AppendMessage("S2", textMessage("elsewhere"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(1), other.Seq)
	assert.Equal(t, "S1", first.SessionID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.Timestamp.IsZero())

	history := r.GetHistory("S1")
	require.Len(t, history, 2)
	assert.Equal(t, "one", history[0].Text)
	assert.Equal(t, "two", history[1].Text)
}

func TestRegistry_GetHistoryReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	_, _, _ = r.EnsureRoom("S1")
	_, _ = r.AppendMessage("S1", textMessage("one"))

	history := r.GetHistory("S1")
	history[0] = &types.Message{Text: "injected"}

	fresh := r.GetHistory("S1")
	require.Len(t, fresh, 1)
	require.Equal(t, "one", fresh[0].Text)

	require.NotNil(t, r.GetHistory("unknown"))
	require.Empty(t, r.GetHistory("unknown"))
}

func TestRegistry_Stats(t *testing.T) {
	r := newTestRegistry()
	_, _, _ = r.EnsureRoom("S1")
	_, _, _ = r.EnsureRoom("S2")
	require.NoError(t, r.AddMember("S1", conn("a")))
	require.NoError(t, r.AddMember("S2", conn("a")))
	require.NoError(t, r.AddMember("S2", conn("b")))
	_, _ = r.AppendMessage("S1", textMessage("x"))
	_, _ = r.AppendMessage("S2", textMessage("y"))
	_, _ = r.AppendMessage("S2", textMessage("z"))

	require.Equal(t, Stats{Rooms: 2, Members: 2, Messages: 3}, r.Stats())
	require.Equal(t, []string{"S1", "S2"}, r.SessionsOf("a"))
}
