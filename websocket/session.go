package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"go-chat/realtime/models"
)

// State 是 session 的生命週期狀態
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 代表一條連線在聊天室中的狀態：Connecting -> Active -> Closed
type Session struct {
	id        string
	identity  string
	roomID    string
	hub       *Hub
	transport Transport

	send chan OutboundEvent // 送往連線的緩衝通道，由 transport 的寫入端消費
	done chan struct{}

	state          atomic.Int32
	presenceMarked atomic.Bool
	closeOnce      sync.Once
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Identity() string { return s.identity }
func (s *Session) RoomID() string   { return s.roomID }
func (s *Session) State() State     { return State(s.state.Load()) }

// Outbound 回傳待寫入連線的事件
func (s *Session) Outbound() <-chan OutboundEvent { return s.send }

// Done 在 session 進入 Closed 時關閉
func (s *Session) Done() <-chan struct{} { return s.done }

// Deliver 將事件放入送出緩衝，不會阻塞
// 緩衝已滿代表對端太慢，直接關閉連線，由讀取端走正常斷線流程
func (s *Session) Deliver(ev OutboundEvent) error {
	select {
	case <-s.done:
		return models.ErrSessionClosed
	default:
	}

	select {
	case s.send <- ev:
		return nil
	default:
		s.hub.log.Warn("send buffer full, closing connection", "conn", s.id, "user", s.identity, "room", s.roomID)
		if err := s.transport.Close(); err != nil {
			s.hub.log.Debug("close transport", "conn", s.id, "error", err)
		}
		return models.ErrSlowConsumer
	}
}

// HandleFrame 處理一個客戶端訊框，只在 Active 狀態有效
// 無法解析的訊框會被丟棄，session 維持 Active
func (s *Session) HandleFrame(ctx context.Context, raw []byte) error {
	if s.State() != StateActive {
		return models.ErrSessionClosed
	}

	ev := Decode(raw)
	switch ev.Kind {
	case KindMessage:
		s.hub.sendMessage(ctx, s, ev.Message)
	case KindTyping:
		s.hub.broadcaster.Publish(s.roomID, NewTypingEvent(s.identity, ev.IsTyping))
	default:
		s.hub.log.Info("discarding frame", "conn", s.id, "user", s.identity, "room", s.roomID, "error", ev.Err)
	}
	return nil
}

// Disconnect 讓 session 進入 Closed，只會執行一次
// 離開群組與標記離線都一定會執行，其中一個失敗不影響另一個
func (s *Session) Disconnect(ctx context.Context, reason error) {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		close(s.done)
		s.hub.cleanup(ctx, s, prev, reason)
	})
}
