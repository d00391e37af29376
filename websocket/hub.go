package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-chat/realtime/models"
	"go-chat/realtime/utils"

	"github.com/google/uuid"
)

const (
	defaultSendBufferSize = 256

	// 斷線清理使用獨立的 context，避免請求結束後無法寫入在線狀態
	cleanupTimeout = 5 * time.Second
)

var errServerShutdown = errors.New("server shutting down")

// Options 是 Hub 的可選設定
type Options struct {
	SendBufferSize int
	HistoryLimit   int // 0 表示連線時不補送歷史訊息
	Logger         *slog.Logger
}

// Hub 組合廣播器、訊息儲存、在線狀態與聊天室目錄，管理所有 session
type Hub struct {
	broadcaster *GroupBroadcaster
	messages    MessageStore
	presence    PresenceTracker
	rooms       RoomDirectory

	// 同一聊天室的「持久化 + 廣播」在這把鎖下進行，收件端看到的順序與儲存順序一致
	sequencer *utils.KeyedMutex
	sessions  sync.Map // sessionID -> *Session

	sendBufferSize int
	historyLimit   int
	log            *slog.Logger
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub(rooms RoomDirectory, messages MessageStore, presence PresenceTracker, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufferSize
	}
	if opts.HistoryLimit < 0 {
		opts.HistoryLimit = 0
	}
	// 歷史訊息不能塞滿送出緩衝
	if opts.HistoryLimit > opts.SendBufferSize/2 {
		opts.HistoryLimit = opts.SendBufferSize / 2
	}
	return &Hub{
		broadcaster:    NewGroupBroadcaster(opts.Logger),
		messages:       messages,
		presence:       presence,
		rooms:          rooms,
		sequencer:      utils.NewKeyedMutex(),
		sendBufferSize: opts.SendBufferSize,
		historyLimit:   opts.HistoryLimit,
		log:            opts.Logger,
	}
}

// Broadcaster 回傳 Hub 使用的廣播器
func (h *Hub) Broadcaster() *GroupBroadcaster { return h.broadcaster }

// Sessions 回傳目前尚未關閉的 session 數量
func (h *Hub) Sessions() int {
	n := 0
	h.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Connect 驗證身分是否為聊天室成員，加入廣播群組並標記在線
// 失敗時 session 已是 Closed，呼叫端負責關閉 transport
func (h *Hub) Connect(ctx context.Context, identity, roomID string, t Transport) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		identity:  identity,
		roomID:    roomID,
		hub:       h,
		transport: t,
		send:      make(chan OutboundEvent, h.sendBufferSize),
		done:      make(chan struct{}),
	}

	room, err := h.rooms.FindRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			err = fmt.Errorf("%w: %w", models.ErrNotRoomMember, err)
		}
		s.Disconnect(ctx, err)
		return nil, err
	}
	if !room.HasParticipant(identity) {
		err := fmt.Errorf("%w: %s in %s", models.ErrNotRoomMember, identity, roomID)
		s.Disconnect(ctx, err)
		return nil, err
	}
	s.roomID = roomKey(room, roomID)
	h.sessions.Store(s.id, s)

	unlock := h.sequencer.Lock(s.roomID)
	if s.State() == StateClosed {
		unlock()
		return nil, models.ErrSessionClosed
	}
	if err := h.broadcaster.Join(s.roomID, s); err != nil {
		unlock()
		s.Disconnect(ctx, err)
		return nil, err
	}
	h.replayHistory(ctx, s)
	unlock()

	s.presenceMarked.Store(true)
	if err := h.presence.MarkOnline(ctx, identity); err != nil {
		h.log.Warn("failed to mark online", "user", identity, "error", err)
	}

	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		// 連線期間被 Shutdown 關閉，清理可能早於 Join 與 MarkOnline，這裡補做一次
		h.broadcaster.Leave(s.roomID, s)
		if err := h.presence.MarkOffline(context.WithoutCancel(ctx), identity); err != nil {
			h.log.Warn("failed to mark offline", "user", identity, "error", err)
		}
		return nil, models.ErrSessionClosed
	}
	h.log.Info("session active", "conn", s.id, "user", identity, "room", s.roomID,
		"members", h.broadcaster.Members(s.roomID))
	return s, nil
}

// roomKey 同一聊天室不論用 ID 或名稱連線，都使用同一個群組
func roomKey(room models.ChatRoom, requested string) string {
	if !room.ID.IsZero() {
		return room.ID.Hex()
	}
	if room.Name != "" {
		return room.Name
	}
	return requested
}

// replayHistory 補送最近的歷史訊息，呼叫端持有聊天室的 sequencer
func (h *Hub) replayHistory(ctx context.Context, s *Session) {
	if h.historyLimit == 0 {
		return
	}
	history, err := h.messages.History(ctx, s.roomID, h.historyLimit)
	if err != nil {
		h.log.Warn("failed to load history", "room", s.roomID, "error", err)
		return
	}
	for _, msg := range history {
		if err := s.Deliver(NewMessageEvent(msg)); err != nil {
			return
		}
	}
}

// sendMessage 先持久化再廣播；持久化失敗時只通知發送者
func (h *Hub) sendMessage(ctx context.Context, s *Session, content string) {
	unlock := h.sequencer.Lock(s.roomID)
	defer unlock()

	msg, err := h.messages.Append(ctx, s.roomID, s.identity, content)
	if err != nil {
		if !errors.Is(err, models.ErrPersistence) {
			err = fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		h.log.Error("failed to persist message", "conn", s.id, "user", s.identity, "room", s.roomID, "error", err)
		if err := s.Deliver(NewErrorEvent("message not delivered", content)); err != nil {
			h.log.Debug("failed to notify sender", "conn", s.id, "error", err)
		}
		return
	}
	h.broadcaster.Publish(s.roomID, NewMessageEvent(msg))
}

// cleanup 在 session 進入 Closed 時執行
func (h *Hub) cleanup(ctx context.Context, s *Session, prev State, reason error) {
	h.sessions.Delete(s.id)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	defer func() {
		if !s.presenceMarked.Load() {
			return
		}
		if err := h.presence.MarkOffline(ctx, s.identity); err != nil {
			h.log.Warn("failed to mark offline", "user", s.identity, "error", err)
		}
	}()
	h.broadcaster.Leave(s.roomID, s)

	h.log.Info("session closed", "conn", s.id, "user", s.identity, "room", s.roomID, "from", prev, "reason", reason)
}

// Shutdown 關閉所有 session 與其連線
func (h *Hub) Shutdown(ctx context.Context) {
	h.sessions.Range(func(_, v any) bool {
		s := v.(*Session)
		s.Disconnect(ctx, errServerShutdown)
		if err := s.transport.Close(); err != nil {
			h.log.Debug("close transport", "conn", s.id, "error", err)
		}
		return true
	})
}
