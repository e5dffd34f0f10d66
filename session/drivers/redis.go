package drivers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/storage/session"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "session:"
	// Suffix of the sorted set indexing session ids by modified time in unix millis.
	// It starts with a NUL byte and ids containing NUL are never stored, so no session
	// key can equal the index key whatever the prefix.
	modifiedIndexSuffix = "\x00modified"

	fieldModified = "modified"
	fieldData     = "data"
)

// touchScript sets modified on an existing session and returns its data.
// KEYS[1] session hash, KEYS[2] modified index; ARGV[1] unix millis, ARGV[2] id.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HSET', KEYS[1], 'modified', ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
local data = redis.call('HGET', KEYS[1], 'data')
if not data then
	return ''
end
return data
`)

// expireScript deletes every session indexed at or before a cutoff.
// KEYS[1] modified index; ARGV[1] cutoff unix millis, ARGV[2] key prefix.
var expireScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[2] .. id)
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
return #ids
`)

// RedisCollection implements session.Collection with one hash per session and a sorted
// set indexing ids by modified time, so gc does not scan the keyspace.
type RedisCollection struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCollection creates a new Redis-based session collection.
// An empty prefix selects the default "session:".
func NewRedisCollection(client redis.UniversalClient, prefix string) *RedisCollection {
	if prefix == "" {
		prefix = sessionKeyPrefix
	}
	return &RedisCollection{
		client: client,
		prefix: prefix,
	}
}

// FindAndTouch implements session.Collection.
// Returns nil if the session is not found (not an error).
func (c *RedisCollection) FindAndTouch(ctx context.Context, id string, now time.Time) (*session.Record, error) {
	if !validID(id) {
		return nil, nil
	}

	keys := []string{c.key(id), c.indexKey()}
	data, err := touchScript.Run(ctx, c.client, keys, now.UnixMilli(), id).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis touch: %w", err)
	}

	return &session.Record{ID: id, Modified: now, Data: data}, nil
}

// Upsert implements session.Collection.
// The hash is replaced, not merged, inside MULTI/EXEC together with its index entry.
func (c *RedisCollection) Upsert(ctx context.Context, rec session.Record) error {
	if !validID(rec.ID) {
		return fmt.Errorf("redis upsert: %w", errInvalidRedisID)
	}

	key := c.key(rec.ID)
	modified := rec.Modified.UnixMilli()

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldModified, modified, fieldData, rec.Data)
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{Score: float64(modified), Member: rec.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert: %w", err)
	}
	return nil
}

// DeleteOne implements session.Collection.
func (c *RedisCollection) DeleteOne(ctx context.Context, id string) (session.DeleteResult, error) {
	if !validID(id) {
		return session.DeleteResult{Acknowledged: true}, nil
	}

	var del *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, c.key(id))
		pipe.ZRem(ctx, c.indexKey(), id)
		return nil
	})
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("redis delete: %w", err)
	}

	return session.DeleteResult{Acknowledged: true, DeletedCount: del.Val()}, nil
}

// DeleteModifiedBefore implements session.Collection.
func (c *RedisCollection) DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (session.DeleteResult, error) {
	score := strconv.FormatInt(cutoff.UnixMilli(), 10)
	n, err := expireScript.Run(ctx, c.client, []string{c.indexKey()}, score, c.prefix).Int64()
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("redis expire: %w", err)
	}

	return session.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// key constructs the Redis key for a session ID.
func (c *RedisCollection) key(id string) string {
	return c.prefix + id
}

func (c *RedisCollection) indexKey() string {
	return c.prefix + modifiedIndexSuffix
}

// errInvalidRedisID is returned for ids that could alias the modified index.
var errInvalidRedisID = errors.New("session id must not contain NUL")

// validID reports whether id can be stored; such an id never exists, so reads and
// deletes of it are plain misses.
func validID(id string) bool {
	return !strings.ContainsRune(id, 0)
}

var _ session.Collection = (*RedisCollection)(nil)
