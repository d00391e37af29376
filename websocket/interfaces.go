//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_stores.go -package=mocks
package websocket

import (
	"context"

	"go-chat/realtime/models"
)

// MessageStore 是持久化聊天訊息的外部儲存
// 同一聊天室的 Append 必須序列化，分配的時間戳與序列化順序一致
type MessageStore interface {
	Append(ctx context.Context, roomID, sender, content string) (models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	History(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// PresenceTracker 記錄使用者在線狀態，最後完成的寫入勝出
type PresenceTracker interface {
	MarkOnline(ctx context.Context, identity string) error
	MarkOffline(ctx context.Context, identity string) error
	Get(ctx context.Context, identity string) (models.PresenceRecord, error)
}

// RoomDirectory 解析聊天室並提供成員清單
type RoomDirectory interface {
	FindRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
}

// Transport 是 session 底層的實體連線
type Transport interface {
	Close() error
}
