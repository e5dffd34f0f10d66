package drivers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/creastat/storage/config"
	"github.com/creastat/storage/session"
	"github.com/creastat/storage/supabase"
)

// Backend is a session collection together with the connection it was opened on.
// Stores built on Collection never close it; the owner of the Backend does.
type Backend struct {
	Type       session.StoreType
	Collection session.Collection

	close func(ctx context.Context) error
}

// Close releases the connection the backend opened.
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// Open connects to the backend selected by cfg.Driver.
// Supports "memory", "mongo", "redis" and "supabase".
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", string(cfg.Driver)))

	switch cfg.Driver {
	case session.StoreTypeMemory:
		return &Backend{Type: cfg.Driver, Collection: NewMemoryCollection()}, nil

	case session.StoreTypeMongo:
		return openMongo(ctx, cfg.Mongo, logger)

	case session.StoreTypeRedis:
		return openRedis(ctx, cfg.Redis, logger)

	case session.StoreTypeSupabase:
		coll, err := supabase.New(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
			Table:  cfg.Supabase.Table,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("supabase session table ready", zap.String("table", cfg.Supabase.Table))
		return &Backend{Type: cfg.Driver, Collection: coll}, nil

	default:
		return nil, fmt.Errorf("%w: %q", session.ErrInvalidStoreType, cfg.Driver)
	}
}

func openMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Backend, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		// Disconnect to prevent resource leak
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	coll := NewMongoCollection(client.Database(cfg.Database).Collection(cfg.Collection))
	if err := coll.EnsureIndexes(ctx); err != nil {
		logger.Warn("could not ensure session indexes", zap.Error(err))
	}

	logger.Debug("mongo session collection ready",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return &Backend{Type: session.StoreTypeMongo, Collection: coll, close: client.Disconnect}, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Backend, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the client to prevent resource leak
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Debug("redis session collection ready", zap.String("addr", cfg.Addr), zap.String("prefix", cfg.Prefix))
	return &Backend{
		Type:       session.StoreTypeRedis,
		Collection: NewRedisCollection(client, cfg.Prefix),
		close: func(context.Context) error {
			return client.Close()
		},
	}, nil
}
