package models

import "time"

// PresenceRecord 記錄使用者的在線狀態，每個身分一筆
type PresenceRecord struct {
	UserID   string    `bson:"_id" json:"userId"`
	IsOnline bool      `bson:"isOnline" json:"isOnline"`
	LastSeen time.Time `bson:"lastSeen" json:"lastSeen"`
}
