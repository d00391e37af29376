package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-chat/realtime/config"
	"go-chat/realtime/database"
	"go-chat/realtime/middleware"
	"go-chat/realtime/websocket"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors" // 引入 CORS 庫
	"golang.org/x/sync/errgroup"
)

type backends struct {
	rooms    websocket.RoomDirectory
	messages websocket.MessageStore
	presence websocket.PresenceTracker
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// setupBackends 依設定選擇 MongoDB / Redis / 程序內儲存
func setupBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	var mongoDB *database.MongoDB
	if cfg.StoreBackend == "mongo" || cfg.PresenceBackend == "mongo" {
		db, err := database.ConnectMongoDB(ctx, cfg.MongoDBURI, cfg.DBName)
		if err != nil {
			return nil, err
		}
		mongoDB = db
		b.closers = append(b.closers, db.Disconnect)
	}

	switch cfg.StoreBackend {
	case "mongo":
		b.rooms = database.NewRoomDirectory(mongoDB.DB)
		b.messages = database.NewMessageStore(mongoDB.DB)
	default:
		b.rooms = database.NewMemoryRoomDirectory(cfg.SeedRooms...)
		b.messages = database.NewMemoryMessageStore()
		log.Printf("Using in-memory message store with %d seeded rooms", len(cfg.SeedRooms))
	}

	switch cfg.PresenceBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			b.close()
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Println("Connected to Redis successfully!")
		b.presence = database.NewRedisPresence(client, "presence:")
		b.closers = append(b.closers, func() { client.Close() })
	case "mongo":
		b.presence = database.NewPresenceStore(mongoDB.DB)
	default:
		b.presence = database.NewMemoryPresence()
	}
	return b, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := setupBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}
	defer b.close()

	hub := websocket.NewHub(b.rooms, b.messages, b.presence, websocket.Options{
		SendBufferSize: cfg.SendBufferSize,
		HistoryLimit:   cfg.HistoryLimit,
		Logger:         logger,
	})
	wsHandler := websocket.NewHandler(hub, cfg.AllowedOrigins, cfg.MaxMessageSize)

	router := mux.NewRouter()

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods("GET")

	// WebSocket 路由，身分由 JWT 中介軟體提供
	router.Handle("/ws/chat/{room}",
		middleware.JWTMiddleware(cfg.JWTSecret)(http.HandlerFunc(wsHandler.HandleConnections)),
	).Methods("GET")

	// 設置 CORS 中介軟體
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     c.Handler(router),
		IdleTimeout: 120 * time.Second,
		ReadTimeout: 10 * time.Second,
		// WebSocket 連線由 writePump 自行設定寫入期限
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		//最多等30秒關閉，避免資料損壞，請求中斷
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// 被 hijack 的 WebSocket 連線不受 srv.Shutdown 管理，先由 Hub 關閉並標記離線
		hub.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
		b.close()
		os.Exit(1)
	}
	log.Println("Server exited gracefully.")
}
