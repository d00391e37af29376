package models

import (
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatRoom 代表一個聊天室的元資料
// 聊天室由外部管理層建立，核心只讀取參與者清單做授權
type ChatRoom struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name"` // 私聊時可為空
	Participants []string           `bson:"participants" json:"participants"`
	IsGroup      bool               `bson:"isGroup" json:"isGroup"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// HasParticipant 判斷指定身分是否為聊天室成員
func (r ChatRoom) HasParticipant(identity string) bool {
	return lo.Contains(r.Participants, identity)
}
