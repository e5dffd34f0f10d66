package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/creastat/storage/config"
	"github.com/creastat/storage/session"
	"github.com/creastat/storage/supabase"
)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{Driver: session.StoreTypeMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCollection{}, b.Collection)
	assert.NoError(t, b.Close(context.Background()))
}

func TestOpen_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		Driver: session.StoreTypeRedis,
		Redis:  config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"},
	}
	b, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.IsType(t, &RedisCollection{}, b.Collection)

	store, err := session.NewStore(session.WithCollection(b.Collection))
	require.NoError(t, err)
	_, err = store.Write(ctx, "abc", "x")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:abc"))

	assert.NoError(t, b.Close(ctx))
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.Config{Driver: session.StoreTypeRedis, Redis: config.RedisConfig{Addr: addr}}
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestOpen_MongoUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cfg := &config.Config{
		Driver: session.StoreTypeMongo,
		Mongo: config.MongoConfig{
			URI:        "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100",
			Database:   "app",
			Collection: "sessions",
		},
	}
	_, err := Open(ctx, cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpen_Supabase(t *testing.T) {
	cfg := &config.Config{
		Driver:   session.StoreTypeSupabase,
		Supabase: config.SupabaseConfig{URL: "http://localhost:54321", APIKey: "anon"},
	}
	b, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &supabase.Collection{}, b.Collection)
}

func TestOpen_InvalidType(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Driver: "etcd"}, nil)
	assert.ErrorIs(t, err, session.ErrInvalidStoreType)
}
