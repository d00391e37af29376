package database

import (
	"context"
	"errors"
	"fmt"

	"go-chat/realtime/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RoomDirectory 從 MongoDB 讀取聊天室資料，只讀
type RoomDirectory struct {
	coll *mongo.Collection
}

// NewRoomDirectory 創建 MongoDB 聊天室目錄
func NewRoomDirectory(db *mongo.Database) *RoomDirectory {
	return &RoomDirectory{coll: db.Collection(chatroomsCollection)}
}

// FindRoom 依 ID (Hex) 或名稱查找聊天室
func (d *RoomDirectory) FindRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"name": roomID}
	if objID, err := primitive.ObjectIDFromHex(roomID); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"_id": objID}, bson.M{"name": roomID}}}
	}

	var room models.ChatRoom
	err := d.coll.FindOne(ctx, filter).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatRoom{}, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	if err != nil {
		return models.ChatRoom{}, fmt.Errorf("%w: find room %s: %w", models.ErrPersistence, roomID, err)
	}
	return room, nil
}
