package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creastat/storage/config"
	"github.com/creastat/storage/session"
	"github.com/creastat/storage/session/drivers"
)

// sharedMemory opens the same in-memory collection for every invocation so state
// survives across commands.
func sharedMemory(mem *drivers.MemoryCollection) openFunc {
	return func(_ context.Context, cfg *config.Config, _ *zap.Logger) (*drivers.Backend, error) {
		return &drivers.Backend{Type: cfg.Driver, Collection: mem}, nil
	}
}

func run(t *testing.T, open openFunc, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level=error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestCommands_Lifecycle(t *testing.T) {
	mem := drivers.NewMemoryCollection()
	open := sharedMemory(mem)

	out, err := run(t, open, "write", "abc123", "user=alice")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = run(t, open, "read", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "user=alice", out)

	out, err = run(t, open, "destroy", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = run(t, open, "read", "abc123")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCommands_Create(t *testing.T) {
	mem := drivers.NewMemoryCollection()

	id, err := run(t, sharedMemory(mem), "create", "cart=3")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, ok := mem.Get(id)
	require.True(t, ok)
	assert.Equal(t, "cart=3", rec.Data)
}

func TestCommands_GC(t *testing.T) {
	ctx := context.Background()
	mem := drivers.NewMemoryCollection()
	now := time.Now()
	require.NoError(t, mem.Upsert(ctx, session.Record{ID: "old", Modified: now.Add(-2 * time.Hour)}))
	require.NoError(t, mem.Upsert(ctx, session.Record{ID: "fresh", Modified: now}))

	out, err := run(t, sharedMemory(mem), "gc", "--max-lifetime", "1h")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, ok := mem.Get("old")
	assert.False(t, ok)
	_, ok = mem.Get("fresh")
	assert.True(t, ok)
}

func TestCommands_InvalidDriver(t *testing.T) {
	_, err := run(t, drivers.Open, "--driver", "etcd", "read", "abc")
	assert.ErrorIs(t, err, session.ErrInvalidStoreType)
}

func TestCommands_InvalidLogLevel(t *testing.T) {
	cmd := newRootCmd(drivers.Open)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "read", "abc"})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidConfig)
}

func TestCommands_ArgsValidated(t *testing.T) {
	_, err := run(t, drivers.Open, "write", "only-id")
	assert.Error(t, err)
}
