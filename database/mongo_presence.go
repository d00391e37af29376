package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-chat/realtime/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PresenceStore 將使用者在線狀態存到 MongoDB，每個身分一份文件
type PresenceStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewPresenceStore 創建 MongoDB 在線狀態儲存
func NewPresenceStore(db *mongo.Database) *PresenceStore {
	return &PresenceStore{coll: db.Collection(presenceCollection), now: time.Now}
}

func (p *PresenceStore) MarkOnline(ctx context.Context, identity string) error {
	return p.upsert(ctx, identity, true)
}

func (p *PresenceStore) MarkOffline(ctx context.Context, identity string) error {
	return p.upsert(ctx, identity, false)
}

// upsert 最後完成的寫入決定最終狀態
func (p *PresenceStore) upsert(ctx context.Context, identity string, online bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"isOnline": online,
		"lastSeen": p.now().UTC(),
	}}
	_, err := p.coll.UpdateOne(ctx, bson.M{"_id": identity}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: update presence for %s: %w", models.ErrPersistence, identity, err)
	}
	return nil
}

// Get 讀取使用者的在線狀態
func (p *PresenceStore) Get(ctx context.Context, identity string) (models.PresenceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var record models.PresenceRecord
	err := p.coll.FindOne(ctx, bson.M{"_id": identity}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PresenceRecord{}, fmt.Errorf("%w: %s", models.ErrPresenceNotFound, identity)
	}
	if err != nil {
		return models.PresenceRecord{}, fmt.Errorf("%w: find presence for %s: %w", models.ErrPersistence, identity, err)
	}
	return record, nil
}
