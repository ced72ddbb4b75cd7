package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/party/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Secret used to sign member tokens",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	baseURL = configVar[string]{
		envKey:       "SERVER_BASE_URL",
		flagKey:      "base-url",
		defaultValue: "http://localhost",
		usage:        "Public base url used to build room links",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	logBackend = configVar[string]{
		envKey:       "SERVER_LOG_BACKEND",
		flagKey:      "log-backend",
		defaultValue: app.LogBackendJSON,
		usage:        "Log backend: json, text or zap",
	}
	store = configVar[string]{
		envKey:       "SERVER_STORE",
		flagKey:      "store",
		defaultValue: app.StoreRedis,
		usage:        "Room store: redis or postgres",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	postgresDSN = configVar[string]{
		envKey:  "POSTGRES_DSN",
		flagKey: "postgres-dsn",
		usage:   "Postgres connection string",
	}
	catalogURL = configVar[string]{
		envKey:  "CATALOG_URL",
		flagKey: "catalog-url",
		usage:   "Content catalog base url, every well formed reference is accepted when empty",
	}
	catalogTimeout = configVar[time.Duration]{
		envKey:       "CATALOG_TIMEOUT",
		flagKey:      "catalog-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Content catalog request timeout",
	}
	oembedURL = configVar[string]{
		envKey:  "OEMBED_URL",
		flagKey: "oembed-url",
		usage:   "oEmbed endpoint used to fill in missing content titles",
	}
	contentCacheTTL = configVar[time.Duration]{
		envKey:       "CONTENT_CACHE_TTL",
		flagKey:      "content-cache-ttl",
		defaultValue: 10 * time.Minute,
		usage:        "How long resolved content is cached, 0 disables the cache",
	}
	defaultMaxParticipants = configVar[int]{
		envKey:       "SERVER_DEFAULT_MAX_PARTICIPANTS",
		flagKey:      "default-max-participants",
		defaultValue: 10,
		usage:        "Room capacity used when none is requested",
	}
	memberTokenTTL = configVar[time.Duration]{
		envKey:  "SERVER_MEMBER_TOKEN_TTL",
		flagKey: "member-token-ttl",
		usage:   "Member token lifetime, 0 means tokens do not expire",
	}
	participantStaleAfter = configVar[time.Duration]{
		envKey:       "SERVER_PARTICIPANT_STALE_AFTER",
		flagKey:      "participant-stale-after",
		defaultValue: 2 * time.Minute,
		usage:        "Participants not seen for this long are removed, 0 disables",
	}
	roomIdleAfter = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_IDLE_AFTER",
		flagKey:      "room-idle-after",
		defaultValue: 30 * time.Minute,
		usage:        "Empty rooms inactive for this long are closed, 0 disables",
	}
	roomRetention = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_RETENTION",
		flagKey:      "room-retention",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "How long the redis store keeps closed rooms",
	}
	sweepInterval = configVar[time.Duration]{
		envKey:       "SERVER_SWEEP_INTERVAL",
		flagKey:      "sweep-interval",
		defaultValue: time.Minute,
		usage:        "Interval of the idle room sweep, 0 disables",
	}
	eventRelay = configVar[string]{
		envKey:       "SERVER_EVENT_RELAY",
		flagKey:      "event-relay",
		defaultValue: app.EventRelayLocal,
		usage:        "Event fan-out: local or redis",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(baseURL.flagKey, baseURL.defaultValue, baseURL.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(logBackend.flagKey, logBackend.defaultValue, logBackend.usage)
	pflag.String(store.flagKey, store.defaultValue, store.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.String(postgresDSN.flagKey, postgresDSN.defaultValue, postgresDSN.usage)
	pflag.String(catalogURL.flagKey, catalogURL.defaultValue, catalogURL.usage)
	pflag.Duration(catalogTimeout.flagKey, catalogTimeout.defaultValue, catalogTimeout.usage)
	pflag.String(oembedURL.flagKey, oembedURL.defaultValue, oembedURL.usage)
	pflag.Duration(contentCacheTTL.flagKey, contentCacheTTL.defaultValue, contentCacheTTL.usage)
	pflag.Int(defaultMaxParticipants.flagKey, defaultMaxParticipants.defaultValue, defaultMaxParticipants.usage)
	pflag.Duration(memberTokenTTL.flagKey, memberTokenTTL.defaultValue, memberTokenTTL.usage)
	pflag.Duration(participantStaleAfter.flagKey, participantStaleAfter.defaultValue, participantStaleAfter.usage)
	pflag.Duration(roomIdleAfter.flagKey, roomIdleAfter.defaultValue, roomIdleAfter.usage)
	pflag.Duration(roomRetention.flagKey, roomRetention.defaultValue, roomRetention.usage)
	pflag.Duration(sweepInterval.flagKey, sweepInterval.defaultValue, sweepInterval.usage)
	pflag.String(eventRelay.flagKey, eventRelay.defaultValue, eventRelay.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(secret)
	bind(port)
	bind(host)
	bind(baseURL)
	bind(logLevel)
	bind(logBackend)
	bind(store)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(postgresDSN)
	bind(catalogURL)
	bind(catalogTimeout)
	bind(oembedURL)
	bind(contentCacheTTL)
	bind(defaultMaxParticipants)
	bind(memberTokenTTL)
	bind(participantStaleAfter)
	bind(roomIdleAfter)
	bind(roomRetention)
	bind(sweepInterval)
	bind(eventRelay)

	return &app.AppConfig{
		Secret:                 viper.GetString(secret.flagKey),
		Host:                   viper.GetString(host.flagKey),
		Port:                   viper.GetInt(port.flagKey),
		BaseURL:                viper.GetString(baseURL.flagKey),
		LogLevel:               viper.GetString(logLevel.flagKey),
		LogBackend:             viper.GetString(logBackend.flagKey),
		Store:                  viper.GetString(store.flagKey),
		RedisPort:              viper.GetInt(redisPort.flagKey),
		RedisHost:              viper.GetString(redisHost.flagKey),
		RedisPassword:          viper.GetString(redisPassword.flagKey),
		PostgresDSN:            viper.GetString(postgresDSN.flagKey),
		CatalogURL:             viper.GetString(catalogURL.flagKey),
		CatalogTimeout:         viper.GetDuration(catalogTimeout.flagKey),
		OEmbedURL:              viper.GetString(oembedURL.flagKey),
		ContentCacheTTL:        viper.GetDuration(contentCacheTTL.flagKey),
		DefaultMaxParticipants: viper.GetInt(defaultMaxParticipants.flagKey),
		MemberTokenTTL:         viper.GetDuration(memberTokenTTL.flagKey),
		ParticipantStaleAfter:  viper.GetDuration(participantStaleAfter.flagKey),
		RoomIdleAfter:          viper.GetDuration(roomIdleAfter.flagKey),
		RoomRetention:          viper.GetDuration(roomRetention.flagKey),
		SweepInterval:          viper.GetDuration(sweepInterval.flagKey),
		EventRelay:             viper.GetString(eventRelay.flagKey),
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
