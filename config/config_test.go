package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDBURI)
	assert.Equal(t, "chat_app_db", cfg.DBName)
	assert.Equal(t, "mongo", cfg.StoreBackend)
	assert.Equal(t, "redis", cfg.PresenceBackend)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.EqualValues(t, 4096, cfg.MaxMessageSize)
	assert.Empty(t, cfg.SeedRooms)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("PRESENCE_BACKEND", "memory")
	t.Setenv("HISTORY_LIMIT", "0")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://admin.example.com")
	t.Setenv("SEED_ROOMS", "r1=alice,bob; team=alice,bob,carol")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 0, cfg.HistoryLimit)
	assert.Equal(t, []string{"https://chat.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	require.Len(t, cfg.SeedRooms, 2)
	assert.Equal(t, "r1", cfg.SeedRooms[0].Name)
	assert.Equal(t, []string{"alice", "bob"}, cfg.SeedRooms[0].Participants)
	assert.False(t, cfg.SeedRooms[0].IsGroup)
	assert.True(t, cfg.SeedRooms[1].IsGroup)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{}},
		{name: "unknown store backend", env: map[string]string{"JWT_SECRET": "x", "STORE_BACKEND": "postgres"}},
		{name: "unknown presence backend", env: map[string]string{"JWT_SECRET": "x", "PRESENCE_BACKEND": "etcd"}},
		{name: "non numeric buffer", env: map[string]string{"JWT_SECRET": "x", "SEND_BUFFER_SIZE": "lots"}},
		{name: "zero buffer", env: map[string]string{"JWT_SECRET": "x", "SEND_BUFFER_SIZE": "0"}},
		{name: "bad seed rooms", env: map[string]string{"JWT_SECRET": "x", "SEED_ROOMS": "alice,bob"}},
		{name: "bad origin", env: map[string]string{"JWT_SECRET": "x", "ALLOWED_ORIGINS": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
