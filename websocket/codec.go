package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"go-chat/realtime/models"
)

// EventKind 是訊框中的 type 欄位
type EventKind string

const (
	KindMessage      EventKind = "message"
	KindTyping       EventKind = "typing"
	KindError        EventKind = "error"
	KindUnrecognized EventKind = ""
)

// InboundEvent 是解析後的客戶端訊框
type InboundEvent struct {
	Kind     EventKind
	Message  string
	IsTyping bool
	Err      error // Kind 為 KindUnrecognized 時的原因
}

// OutboundEvent 是廣播給聊天室成員 (或單一連線) 的事件
type OutboundEvent struct {
	Kind      EventKind
	Message   string
	Sender    string
	Timestamp time.Time
	User      string
	IsTyping  bool
	Error     string
}

// NewMessageEvent 由已持久化的訊息建立廣播事件
func NewMessageEvent(msg models.Message) OutboundEvent {
	return OutboundEvent{
		Kind:      KindMessage,
		Message:   msg.Content,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
	}
}

// NewTypingEvent 建立輸入中狀態事件
func NewTypingEvent(user string, isTyping bool) OutboundEvent {
	return OutboundEvent{Kind: KindTyping, User: user, IsTyping: isTyping}
}

// NewErrorEvent 建立只回給發送者的失敗通知
func NewErrorEvent(reason, message string) OutboundEvent {
	return OutboundEvent{Kind: KindError, Error: reason, Message: message}
}

type inboundFrame struct {
	Type     *string `json:"type"`
	Message  *string `json:"message"`
	IsTyping *bool   `json:"is_typing"`
}

type messageFrame struct {
	Type      EventKind `json:"type"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp string    `json:"timestamp"`
}

type typingFrame struct {
	Type     EventKind `json:"type"`
	User     string    `json:"user"`
	IsTyping bool      `json:"is_typing"`
}

type errorFrame struct {
	Type    EventKind `json:"type"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
}

func unrecognized(format string, args ...any) InboundEvent {
	return InboundEvent{Kind: KindUnrecognized, Err: fmt.Errorf("%w: "+format, append([]any{models.ErrDecode}, args...)...)}
}

// Decode 解析客戶端訊框，任何無效內容都回傳 KindUnrecognized，不會 panic
func Decode(raw []byte) InboundEvent {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return unrecognized("%v", err)
	}
	if frame.Type == nil {
		return unrecognized("missing type")
	}

	switch EventKind(*frame.Type) {
	case KindMessage:
		if frame.Message == nil {
			return unrecognized("message event without message")
		}
		return InboundEvent{Kind: KindMessage, Message: *frame.Message}
	case KindTyping:
		// is_typing 缺少時視為 false
		isTyping := frame.IsTyping != nil && *frame.IsTyping
		return InboundEvent{Kind: KindTyping, IsTyping: isTyping}
	default:
		return unrecognized("unknown type %q", *frame.Type)
	}
}

// Encode 將事件編碼為 JSON 訊框
func Encode(ev OutboundEvent) []byte {
	var v any
	switch ev.Kind {
	case KindMessage:
		v = messageFrame{
			Type:      KindMessage,
			Message:   ev.Message,
			Sender:    ev.Sender,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	case KindTyping:
		v = typingFrame{Type: KindTyping, User: ev.User, IsTyping: ev.IsTyping}
	case KindError:
		v = errorFrame{Type: KindError, Error: ev.Error, Message: ev.Message}
	default:
		v = struct {
			Type EventKind `json:"type"`
		}{ev.Kind}
	}
	// 只包含字串與布林值，Marshal 不會失敗
	data, _ := json.Marshal(v)
	return data
}
