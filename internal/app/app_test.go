package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Secret:                 "secret",
		Host:                   "0.0.0.0",
		Port:                   8080,
		LogLevel:               "info",
		LogBackend:             LogBackendJSON,
		Store:                  StoreRedis,
		DefaultMaxParticipants: 10,
		ParticipantStaleAfter:  2 * time.Minute,
		RoomIdleAfter:          30 * time.Minute,
		RoomRetention:          24 * time.Hour,
		SweepInterval:          time.Minute,
		EventRelay:             EventRelayLocal,
	}
}

func TestAppConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		modify func(cfg *AppConfig)
	}{
		{name: "no secret", modify: func(cfg *AppConfig) { cfg.Secret = "" }},
		{name: "bad port", modify: func(cfg *AppConfig) { cfg.Port = 0 }},
		{name: "no default capacity", modify: func(cfg *AppConfig) { cfg.DefaultMaxParticipants = 0 }},
		{name: "unknown store", modify: func(cfg *AppConfig) { cfg.Store = "mongo" }},
		{name: "postgres without dsn", modify: func(cfg *AppConfig) { cfg.Store = StorePostgres }},
		{name: "unknown relay", modify: func(cfg *AppConfig) { cfg.EventRelay = "kafka" }},
		{name: "sub second sweep", modify: func(cfg *AppConfig) { cfg.SweepInterval = time.Millisecond }},
		{name: "negative idle", modify: func(cfg *AppConfig) { cfg.RoomIdleAfter = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, backend := range []string{LogBackendJSON, LogBackendText, LogBackendZap} {
		t.Run(backend, func(t *testing.T) {
			logger, err := NewLogger(backend, "debug")
			require.NoError(t, err)
			assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
		})
	}

	_, err := NewLogger("syslog", "info")
	assert.Error(t, err)

	_, err = NewLogger(LogBackendJSON, "loud")
	assert.Error(t, err)
}

func TestNewContentRepo(t *testing.T) {
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	cfg := validConfig()
	cfg.ContentCacheTTL = time.Minute
	repo := newContentRepo(cfg, rc, slog.Default())

	got, err := repo.GetContent(context.Background(), room.ContentRef{EpisodeID: "episode-7"})
	require.NoError(t, err)
	assert.Equal(t, room.ContentKindEpisode, got.Kind)
	assert.Equal(t, "episode-7", got.ID)
}

func TestNewStoreRedis(t *testing.T) {
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	store, closeStore, err := newStore(context.Background(), validConfig(), rc, slog.Default())
	require.NoError(t, err)
	defer closeStore()

	ids, err := store.ListActiveRoomIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
