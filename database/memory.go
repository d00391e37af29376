package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-chat/realtime/models"
	"go-chat/realtime/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryMessageStore 是程序內的訊息儲存，用於本機執行與測試
type MemoryMessageStore struct {
	locks *utils.KeyedMutex
	clock *roomClock

	mu       sync.RWMutex
	messages map[string][]models.Message // roomID -> 依序列化順序排列的訊息
	index    map[primitive.ObjectID]messageRef
}

type messageRef struct {
	roomID string
	pos    int
}

// NewMemoryMessageStore 創建程序內訊息儲存
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		locks:    utils.NewKeyedMutex(),
		clock:    newRoomClock(nil),
		messages: make(map[string][]models.Message),
		index:    make(map[primitive.ObjectID]messageRef),
	}
}

func (s *MemoryMessageStore) Append(ctx context.Context, roomID, sender, content string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	unlock := s.locks.Lock(roomID)
	defer unlock()

	msg := models.Message{
		ID:        primitive.NewObjectID(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: s.clock.next(roomID),
	}

	s.mu.Lock()
	s.index[msg.ID] = messageRef{roomID: roomID, pos: len(s.messages[roomID])}
	s.messages[roomID] = append(s.messages[roomID], msg)
	s.mu.Unlock()
	return msg, nil
}

func (s *MemoryMessageStore) MarkRead(_ context.Context, messageID string) error {
	objID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrMessageNotFound, messageID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.index[objID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrMessageNotFound, messageID)
	}
	s.messages[ref.roomID][ref.pos].IsRead = true
	return nil
}

func (s *MemoryMessageStore) History(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Message, len(all))
	copy(out, all)
	return out, nil
}

// MemoryPresence 是程序內的在線狀態儲存
type MemoryPresence struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]models.PresenceRecord
}

// NewMemoryPresence 創建程序內在線狀態儲存
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{now: time.Now, records: make(map[string]models.PresenceRecord)}
}

func (p *MemoryPresence) MarkOnline(_ context.Context, identity string) error {
	p.set(identity, true)
	return nil
}

func (p *MemoryPresence) MarkOffline(_ context.Context, identity string) error {
	p.set(identity, false)
	return nil
}

func (p *MemoryPresence) set(identity string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[identity] = models.PresenceRecord{UserID: identity, IsOnline: online, LastSeen: p.now().UTC()}
}

func (p *MemoryPresence) Get(_ context.Context, identity string) (models.PresenceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record, ok := p.records[identity]
	if !ok {
		return models.PresenceRecord{}, fmt.Errorf("%w: %s", models.ErrPresenceNotFound, identity)
	}
	return record, nil
}

// MemoryRoomDirectory 是程序內的聊天室目錄，可用 ID (Hex) 或名稱查找
type MemoryRoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]models.ChatRoom
}

// NewMemoryRoomDirectory 以指定的聊天室初始化目錄
func NewMemoryRoomDirectory(rooms ...models.ChatRoom) *MemoryRoomDirectory {
	d := &MemoryRoomDirectory{rooms: make(map[string]models.ChatRoom)}
	for _, r := range rooms {
		d.Put(r)
	}
	return d
}

// Put 新增或取代聊天室
func (d *MemoryRoomDirectory) Put(room models.ChatRoom) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !room.ID.IsZero() {
		d.rooms[room.ID.Hex()] = room
	}
	if room.Name != "" {
		d.rooms[room.Name] = room
	}
}

func (d *MemoryRoomDirectory) FindRoom(_ context.Context, roomID string) (models.ChatRoom, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return models.ChatRoom{}, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	return room, nil
}
