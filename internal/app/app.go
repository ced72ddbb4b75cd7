package app

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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/controller"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/content"
	"github.com/sharetube/party/internal/repository/room"
	roomPostgres "github.com/sharetube/party/internal/repository/room/postgres"
	roomRedis "github.com/sharetube/party/internal/repository/room/redis"
	roomService "github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/internal/worker"
	"github.com/sharetube/party/pkg/embedmeta"
	"github.com/sharetube/party/pkg/pgclient"
	"github.com/sharetube/party/pkg/redisclient"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	EventRelayLocal = "local"
	EventRelayRedis = "redis"
)

type AppConfig struct {
	Secret                 string        `json:"-"`
	Host                   string        `json:"host"`
	Port                   int           `json:"port"`
	BaseURL                string        `json:"base_url"`
	LogLevel               string        `json:"log_level"`
	LogBackend             string        `json:"log_backend"`
	Store                  string        `json:"store"`
	RedisPort              int           `json:"redis_port"`
	RedisHost              string        `json:"redis_host"`
	RedisPassword          string        `json:"-"`
	PostgresDSN            string        `json:"-"`
	CatalogURL             string        `json:"catalog_url"`
	CatalogTimeout         time.Duration `json:"catalog_timeout"`
	OEmbedURL              string        `json:"oembed_url"`
	ContentCacheTTL        time.Duration `json:"content_cache_ttl"`
	DefaultMaxParticipants int           `json:"default_max_participants"`
	MemberTokenTTL         time.Duration `json:"member_token_ttl"`
	ParticipantStaleAfter  time.Duration `json:"participant_stale_after"`
	RoomIdleAfter          time.Duration `json:"room_idle_after"`
	RoomRetention          time.Duration `json:"room_retention"`
	SweepInterval          time.Duration `json:"sweep_interval"`
	EventRelay             string        `json:"event_relay"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.DefaultMaxParticipants < 1 {
		return fmt.Errorf("default max participants must be greater than 0")
	}
	switch cfg.Store {
	case StoreRedis:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres dsn must be set when store is postgres")
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}
	if cfg.EventRelay != EventRelayLocal && cfg.EventRelay != EventRelayRedis {
		return fmt.Errorf("unknown event relay %q", cfg.EventRelay)
	}
	if cfg.SweepInterval < 0 || cfg.ParticipantStaleAfter < 0 || cfg.RoomIdleAfter < 0 {
		return errors.New("durations must not be negative")
	}
	if cfg.SweepInterval > 0 && cfg.SweepInterval < time.Second {
		return errors.New("sweep interval must be at least 1s")
	}
	if cfg.Store == StoreRedis && cfg.RoomRetention <= 0 {
		return errors.New("room retention must be greater than 0")
	}

	return nil
}

type contentRepo interface {
	GetContent(context.Context, room.ContentRef) (room.Content, error)
}

type publisher interface {
	Publish(context.Context, gateway.Event)
}

func newStore(ctx context.Context, cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (room.Store, func(), error) {
	if cfg.Store == StorePostgres {
		pool, err := pgclient.NewPool(ctx, &pgclient.Config{
			DSN:             cfg.PostgresDSN,
			ApplicationName: "party",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}

		repo := roomPostgres.NewRepo(pool, logger)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		return repo, pool.Close, nil
	}

	return roomRedis.NewRepo(rc, cfg.RoomRetention, logger), func() {}, nil
}

func newContentRepo(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) contentRepo {
	var repo contentRepo = content.NewPassthrough()
	if cfg.CatalogURL != "" {
		metadata := embedmeta.NewClient(cfg.OEmbedURL, cfg.CatalogTimeout)
		repo = content.NewCatalog(cfg.CatalogURL, cfg.CatalogTimeout, metadata, logger)
	}

	if cfg.ContentCacheTTL > 0 {
		repo = content.NewCache(repo, rc, cfg.ContentCacheTTL, logger)
	}

	return repo
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(cfg.LogBackend, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	redisCfg := &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	}
	rc, err := redisclient.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	store, closeStore, err := newStore(ctx, cfg, rc, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := gateway.NewHub(gateway.DefaultQueueSize, logger)
	var pub publisher = hub
	if cfg.EventRelay == EventRelayRedis {
		relay := gateway.NewRedisRelay(rc, hub, gateway.DefaultQueueSize, logger)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event relay: %w", err)
		}
		pub = relay
	}

	service := roomService.New(store, newContentRepo(cfg, rc, logger), pub, &roomService.Config{
		Secret:                 cfg.Secret,
		BaseURL:                cfg.BaseURL,
		DefaultMaxParticipants: cfg.DefaultMaxParticipants,
		MemberTokenTTL:         cfg.MemberTokenTTL,
		ParticipantStaleAfter:  cfg.ParticipantStaleAfter,
		RoomIdleAfter:          cfg.RoomIdleAfter,
	}, logger)

	if cfg.SweepInterval > 0 {
		w := worker.New(service, &worker.Config{
			Redis: asynq.RedisClientOpt{
				Addr:     redisCfg.Addr(),
				Password: redisCfg.Password,
			},
			SweepInterval: cfg.SweepInterval,
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "worker stopped", "error", err)
			}
		}()
	}

	controller := controller.NewController(service, hub, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
		}

		shutdownCtx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "store", cfg.Store, "event_relay", cfg.EventRelay)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()
	cancel()

	return nil
}
