package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	messagesCollection  = "messages"
	presenceCollection  = "presence"
	chatroomsCollection = "chatrooms"

	// 單次資料庫操作的最長時間
	opTimeout = 5 * time.Second
)

// MongoDB 包裝 MongoDB 連線與資料庫
type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// ConnectMongoDB 建立並初始化 MongoDB 連線
func ConnectMongoDB(ctx context.Context, uri, name string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.Println("Connected to MongoDB successfully!")

	m := &MongoDB{Client: client, DB: client.Database(name)}
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// EnsureIndexes 建立查詢聊天記錄用的索引
// 訊息是持久資料，不設定 TTL
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "timestamp", Value: 1}},
	}
	if _, err := m.DB.Collection(messagesCollection).Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}

	nameIndex := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}}
	if _, err := m.DB.Collection(chatroomsCollection).Indexes().CreateOne(ctx, nameIndex); err != nil {
		return fmt.Errorf("create chatrooms index: %w", err)
	}
	return nil
}

// Disconnect 關閉 MongoDB 連線
func (m *MongoDB) Disconnect() {
	if m == nil || m.Client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := m.Client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}
