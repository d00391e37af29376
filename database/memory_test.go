package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-chat/realtime/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryMessageStore_AppendAssignsOrderedTimestamps(t *testing.T) {
	store := NewMemoryMessageStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Append(ctx, "r1", "alice", fmt.Sprintf("msg-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, history, 100)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp),
			"時間戳不應該倒退 (index %d)", i)
	}
	for _, m := range history {
		assert.False(t, m.IsRead, "新訊息應該是未讀")
		assert.Equal(t, "r1", m.RoomID)
	}
}

func TestMemoryMessageStore_HistoryLimitKeepsNewest(t *testing.T) {
	store := NewMemoryMessageStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "r1", "bob", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, "r2", "bob", "other room")
	require.NoError(t, err)

	history, err := store.History(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "m4", history[1].Content)
}

func TestMemoryMessageStore_MarkRead(t *testing.T) {
	store := NewMemoryMessageStore()
	ctx := context.Background()
	msg, err := store.Append(ctx, "r1", "alice", "hi")
	require.NoError(t, err)

	require.NoError(t, store.MarkRead(ctx, msg.ID.Hex()))
	require.NoError(t, store.MarkRead(ctx, msg.ID.Hex()), "重複標記已讀不應該出錯")

	history, err := store.History(ctx, "r1", 10)
	require.NoError(t, err)
	assert.True(t, history[0].IsRead)

	err = store.MarkRead(ctx, primitive.NewObjectID().Hex())
	assert.True(t, errors.Is(err, models.ErrMessageNotFound))
	err = store.MarkRead(ctx, "zzz")
	assert.True(t, errors.Is(err, models.ErrMessageNotFound))
}

func TestMemoryMessageStore_CancelledContext(t *testing.T) {
	store := NewMemoryMessageStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, "r1", "alice", "hi")
	assert.True(t, errors.Is(err, models.ErrPersistence))
}

func TestMemoryPresence_LastWriterWins(t *testing.T) {
	presence := NewMemoryPresence()
	ctx := context.Background()

	_, err := presence.Get(ctx, "alice")
	assert.True(t, errors.Is(err, models.ErrPresenceNotFound))

	require.NoError(t, presence.MarkOnline(ctx, "alice"))
	first, err := presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first.IsOnline)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, presence.MarkOffline(ctx, "alice"))
	second, err := presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, second.IsOnline)
	assert.True(t, second.LastSeen.After(first.LastSeen))
}

func TestMemoryPresence_ConcurrentUpdates(t *testing.T) {
	presence := NewMemoryPresence()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = presence.MarkOnline(ctx, "alice")
			} else {
				_ = presence.MarkOffline(ctx, "alice")
			}
		}(i)
	}
	wg.Wait()

	// 最後再寫一次，結果必須反映最後完成的呼叫
	require.NoError(t, presence.MarkOnline(ctx, "alice"))
	record, err := presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, record.IsOnline)
}

func TestMemoryRoomDirectory_FindByIDOrName(t *testing.T) {
	id := primitive.NewObjectID()
	dir := NewMemoryRoomDirectory(models.ChatRoom{ID: id, Name: "general", Participants: []string{"alice"}})

	byID, err := dir.FindRoom(context.Background(), id.Hex())
	require.NoError(t, err)
	byName, err := dir.FindRoom(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, byID, byName)
	assert.True(t, byName.HasParticipant("alice"))
	assert.False(t, byName.HasParticipant("mallory"))

	_, err = dir.FindRoom(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrRoomNotFound))
}
