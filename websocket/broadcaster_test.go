package websocket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-chat/realtime/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	id       string
	mu       sync.Mutex
	events   []OutboundEvent
	fail     bool
	delay    time.Duration
	delivers atomic.Int32
}

func newFakeMember(id string) *fakeMember { return &fakeMember{id: id} }

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(ev OutboundEvent) error {
	m.delivers.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.fail {
		return models.ErrSlowConsumer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *fakeMember) received() []OutboundEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundEvent(nil), m.events...)
}

func TestBroadcaster_PublishReachesOnlyRoomMembers(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	c1, c2, other := newFakeMember("c1"), newFakeMember("c2"), newFakeMember("c3")
	require.NoError(t, b.Join("r1", c1))
	require.NoError(t, b.Join("r1", c2))
	require.NoError(t, b.Join("r2", other))

	n := b.Publish("r1", NewTypingEvent("alice", true))

	assert.Equal(t, 2, n)
	assert.Len(t, c1.received(), 1)
	assert.Len(t, c2.received(), 1)
	assert.Empty(t, other.received(), "其他聊天室不應該收到")
}

func TestBroadcaster_JoinIsIdempotent(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	c1 := newFakeMember("c1")
	require.NoError(t, b.Join("r1", c1))
	require.NoError(t, b.Join("r1", c1))

	assert.Equal(t, 1, b.Members("r1"))
	b.Publish("r1", NewTypingEvent("alice", true))
	assert.Len(t, c1.received(), 1, "重複加入不應該產生重複投遞")
}

func TestBroadcaster_OneRoomPerConnection(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	c1 := newFakeMember("c1")
	require.NoError(t, b.Join("r1", c1))

	err := b.Join("r2", c1)
	assert.True(t, errors.Is(err, models.ErrAlreadyBound))
	assert.Equal(t, 0, b.Members("r2"))

	room, ok := b.RoomOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "r1", room)

	// 離開後可以加入其他聊天室
	b.Leave("r1", c1)
	require.NoError(t, b.Join("r2", c1))
}

func TestBroadcaster_LeaveIsIdempotent(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	c1, c2 := newFakeMember("c1"), newFakeMember("c2")
	require.NoError(t, b.Join("r1", c1))
	require.NoError(t, b.Join("r2", c2))

	b.Leave("r1", c1)
	b.Leave("r1", c1)
	b.Leave("r1", c2) // c2 不在 r1
	b.Leave("nowhere", newFakeMember("ghost"))

	assert.Equal(t, 0, b.Members("r1"))
	assert.Equal(t, 1, b.Members("r2"), "不應該影響其他聊天室")
	assert.Equal(t, 0, b.Publish("r1", NewTypingEvent("x", true)))
}

func TestBroadcaster_FailedMemberDoesNotAffectOthers(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	bad, good := newFakeMember("bad"), newFakeMember("good")
	bad.fail = true
	require.NoError(t, b.Join("r1", bad))
	require.NoError(t, b.Join("r1", good))

	n := b.Publish("r1", NewTypingEvent("alice", true))

	assert.Equal(t, 1, n)
	assert.Len(t, good.received(), 1)
	assert.EqualValues(t, 1, bad.delivers.Load())
}

func TestBroadcaster_SnapshotExcludesLateJoiners(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	slow := newFakeMember("slow")
	slow.delay = 50 * time.Millisecond
	require.NoError(t, b.Join("r1", slow))

	done := make(chan struct{})
	go func() {
		b.Publish("r1", NewTypingEvent("alice", true))
		close(done)
	}()

	// 等 Publish 開始投遞後再加入
	require.Eventually(t, func() bool { return slow.delivers.Load() == 1 }, time.Second, time.Millisecond)
	late := newFakeMember("late")
	require.NoError(t, b.Join("r1", late), "投遞中加入不應該被阻塞")
	<-done

	assert.Empty(t, late.received())
	assert.Len(t, slow.received(), 1)
}

func TestBroadcaster_LeaveDuringPublishDoesNotBlock(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	slow := newFakeMember("slow")
	slow.delay = 300 * time.Millisecond
	require.NoError(t, b.Join("r1", slow))

	done := make(chan struct{})
	go func() {
		b.Publish("r1", NewTypingEvent("alice", true))
		close(done)
	}()
	require.Eventually(t, func() bool { return slow.delivers.Load() == 1 }, time.Second, time.Millisecond)

	left := make(chan struct{})
	go func() {
		b.Leave("r1", slow)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(150 * time.Millisecond):
		t.Fatal("Leave 被 Publish 的投遞阻塞")
	}
	<-done
}

func TestBroadcaster_ConcurrentMembership(t *testing.T) {
	b := NewGroupBroadcaster(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("r%d", i%5)
			m := newFakeMember(fmt.Sprintf("c%d", i))
			for j := 0; j < 20; j++ {
				assert.NoError(t, b.Join(room, m))
				b.Publish(room, NewTypingEvent(m.id, true))
				b.Leave(room, m)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, b.Members(fmt.Sprintf("r%d", i)))
	}
}
