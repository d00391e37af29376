package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go-chat/realtime/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv" // 引入這個庫來讀取 .env 檔案
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	Port            string   `validate:"required,numeric"`
	MongoDBURI      string   `validate:"required_if=StoreBackend mongo,required_if=PresenceBackend mongo"`
	DBName          string   `validate:"required_if=StoreBackend mongo"`
	RedisAddr       string   `validate:"required_if=PresenceBackend redis"`
	RedisPassword   string
	RedisDB         int      `validate:"gte=0"`
	StoreBackend    string   `validate:"oneof=mongo memory"`
	PresenceBackend string   `validate:"oneof=redis mongo memory"`
	JWTSecret       string   `validate:"required"`
	AllowedOrigins  []string `validate:"dive,url"`
	SendBufferSize  int      `validate:"gt=0"`
	HistoryLimit    int      `validate:"gte=0"`
	MaxMessageSize  int64    `validate:"gt=0"`
	// SeedRooms 只用於 memory 後端，格式: room=alice,bob;room2=carol,dave
	SeedRooms []models.ChatRoom `validate:"-"`
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() (*Config, error) {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		MongoDBURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("DB_NAME", "chat_app_db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		StoreBackend:    getEnv("STORE_BACKEND", "mongo"),
		PresenceBackend: getEnv("PRESENCE_BACKEND", "redis"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SendBufferSize, err = getEnvInt("SEND_BUFFER_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getEnvInt("HISTORY_LIMIT", 50); err != nil {
		return nil, err
	}
	maxSize, err := getEnvInt("MAX_MESSAGE_SIZE", 4096)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageSize = int64(maxSize)
	if cfg.SeedRooms, err = parseSeedRooms(getEnv("SEED_ROOMS", "")); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseSeedRooms(value string) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, members, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("SEED_ROOMS entry %q must look like room=user1,user2", entry)
		}
		participants := splitList(members)
		rooms = append(rooms, models.ChatRoom{
			Name:         name,
			Participants: participants,
			IsGroup:      len(participants) > 2,
		})
	}
	return rooms, nil
}
