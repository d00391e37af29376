package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message 代表一則已持久化的聊天訊息
// 欄位形狀由外部 CRUD 層直接讀取，請勿任意更名
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RoomID    string             `bson:"roomId" json:"roomId"`   // 聊天室ID
	Sender    string             `bson:"sender" json:"sender"`   // 發送者身分
	Content   string             `bson:"content" json:"content"` // 訊息內容
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	IsRead    bool               `bson:"isRead" json:"isRead"` // 已讀狀態，初始為 false
}
