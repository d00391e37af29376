package database

import (
	"context"
	"fmt"
	"time"

	"go-chat/realtime/models"

	"github.com/redis/go-redis/v9"
)

// RedisPresence 將在線狀態存成 Redis hash: <prefix><identity> -> {online, lastSeen}
// 單一 HSET 同時寫入兩個欄位，最後完成的寫入勝出
type RedisPresence struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisPresence 創建 Redis 在線狀態儲存
func NewRedisPresence(client *redis.Client, prefix string) *RedisPresence {
	return &RedisPresence{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisPresence) MarkOnline(ctx context.Context, identity string) error {
	return r.set(ctx, identity, true)
}

func (r *RedisPresence) MarkOffline(ctx context.Context, identity string) error {
	return r.set(ctx, identity, false)
}

func (r *RedisPresence) set(ctx context.Context, identity string, online bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.client.HSet(ctx, r.prefix+identity,
		"online", online,
		"lastSeen", r.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: redis presence set: %w", models.ErrPersistence, err)
	}
	return nil
}

// Get 讀取在線狀態
func (r *RedisPresence) Get(ctx context.Context, identity string) (models.PresenceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, r.prefix+identity).Result()
	if err != nil {
		return models.PresenceRecord{}, fmt.Errorf("%w: redis presence get: %w", models.ErrPersistence, err)
	}
	if len(fields) == 0 {
		return models.PresenceRecord{}, fmt.Errorf("%w: %s", models.ErrPresenceNotFound, identity)
	}

	lastSeen, err := time.Parse(time.RFC3339Nano, fields["lastSeen"])
	if err != nil {
		return models.PresenceRecord{}, fmt.Errorf("%w: bad lastSeen for %s: %w", models.ErrPersistence, identity, err)
	}
	return models.PresenceRecord{
		UserID:   identity,
		IsOnline: fields["online"] == "1",
		LastSeen: lastSeen,
	}, nil
}
