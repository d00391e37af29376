package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go-chat/realtime/models"
	"go-chat/realtime/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore 將聊天訊息寫入 MongoDB
// 同一聊天室的寫入在本程序內序列化，時間戳依序列化順序分配
type MessageStore struct {
	coll  *mongo.Collection
	locks *utils.KeyedMutex
	clock *roomClock
}

// NewMessageStore 創建 MongoDB 訊息儲存
func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{
		coll:  db.Collection(messagesCollection),
		locks: utils.NewKeyedMutex(),
		clock: newRoomClock(nil),
	}
}

// Append 將新的聊天訊息插入到 MongoDB
func (s *MessageStore) Append(ctx context.Context, roomID, sender, content string) (models.Message, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !s.clock.seeded(roomID) {
		latest, err := s.latestTimestamp(ctx, roomID)
		if err != nil {
			return models.Message{}, fmt.Errorf("%w: load latest timestamp: %w", models.ErrPersistence, err)
		}
		s.clock.observe(roomID, latest)
	}

	msg := models.Message{
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: s.clock.next(roomID),
		IsRead:    false,
	}
	result, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: insert message: %w", models.ErrPersistence, err)
	}
	msg.ID = result.InsertedID.(primitive.ObjectID)
	return msg, nil
}

func (s *MessageStore) latestTimestamp(ctx context.Context, roomID string) (ts time.Time, err error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	var last models.Message
	err = s.coll.FindOne(ctx, bson.M{"roomId": roomID}, opts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ts, nil
	}
	if err != nil {
		return ts, err
	}
	return last.Timestamp.UTC(), nil
}

// MarkRead 將訊息標記為已讀，重複呼叫不會出錯
func (s *MessageStore) MarkRead(ctx context.Context, messageID string) error {
	objID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrMessageNotFound, messageID)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return fmt.Errorf("%w: mark read: %w", models.ErrPersistence, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", models.ErrMessageNotFound, messageID)
	}
	return nil
}

// History 獲取指定聊天室最近的 limit 條訊息，由舊到新
func (s *MessageStore) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.M{"roomId": roomID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: find history for room %s: %w", models.ErrPersistence, roomID, err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("%w: decode history for room %s: %w", models.ErrPersistence, roomID, err)
	}
	slices.Reverse(messages)
	return messages, nil
}
