package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/database"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/go-redis/redis/v8"
)

// Backend is the pair of collaborators both views run against.
type Backend struct {
	Docs     docstore.Store
	Provider *identity.Local

	redis *redis.Client
}

// Open builds the document store and identity provider selected by cfg. With the
// postgres backend it connects and migrates the database first.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if !cfg.UsesDatabase() {
		slog.Info("using in-memory document store")
		return &Backend{
			Docs:     docstore.NewMemoryStore(),
			Provider: identity.NewLocal(identity.NewMemoryAccounts(), cfg.JWTSecret, cfg.SessionExpiry),
		}, nil
	}

	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}

	b := &Backend{
		Provider: identity.NewLocal(identity.NewGormAccounts(database.DB), cfg.JWTSecret, cfg.SessionExpiry),
	}

	var notifier docstore.Notifier
	switch cfg.Notifier {
	case config.NotifierRedis:
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		notifier = docstore.NewRedisNotifier(b.redis, cfg.NotifyChannel)
	default:
		notifier = docstore.NewPGNotifier(database.DB, cfg.ListenerDSN(), cfg.NotifyChannel)
	}
	b.Docs = docstore.NewPostgresStore(database.DB, notifier)

	slog.Info("using postgres document store", "notifier", cfg.Notifier, "channel", cfg.NotifyChannel)
	return b, nil
}

func (b *Backend) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			slog.Warn("redis close error", "error", err)
		}
	}
	database.Close()
}
