package docbuild

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxFieldScript raises a unix-seconds hash field to ARGV[1] when it is newer,
// so concurrent writers resolve to the maximum.
// KEYS[1] = marker hash
// ARGV[1] = unix seconds
// ARGV[2] = field name
// ARGV[3] = fork (only set when absent, may be "")
// ARGV[4] = branch (only set when absent, may be "")
var maxFieldScript = redis.NewScript(`
local key = KEYS[1]
local t = tonumber(ARGV[1])
local field = ARGV[2]

local cur = tonumber(redis.call("HGET", key, field))
if not cur or t > cur then
    redis.call("HSET", key, field, t)
end
if ARGV[3] ~= "" then
    redis.call("HSETNX", key, "fork", ARGV[3])
end
if ARGV[4] ~= "" then
    redis.call("HSETNX", key, "branch", ARGV[4])
end
return redis.call("HGET", key, field)
`)

// RedisStore keeps markers as Redis hashes, for setups where several hosts
// queue docs builds.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store backed by the Redis server at addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb, prefix: "cibot:docs:"}
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(issue int) string {
	return s.prefix + strconv.Itoa(issue)
}

// Load reads the marker hash for issue.
func (s *RedisStore) Load(ctx context.Context, issue int) (*Marker, error) {
	fields, err := s.client.HGetAll(ctx, s.key(issue)).Result()
	if err != nil {
		return nil, fmt.Errorf("load marker %d: %w", issue, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	m := &Marker{
		Issue:  issue,
		Fork:   fields["fork"],
		Branch: fields["branch"],
		Queued: fields["queued"] == "1",
	}
	if m.RequestedAt, err = parseUnix(fields["requested_at"]); err != nil {
		return nil, fmt.Errorf("marker %d requested_at: %w", issue, err)
	}
	if m.DoneAt, err = parseUnix(fields["done_at"]); err != nil {
		return nil, fmt.Errorf("marker %d done_at: %w", issue, err)
	}
	return m, nil
}

// Touch raises requested_at to t atomically.
func (s *RedisStore) Touch(ctx context.Context, issue int, fork, branch string, t time.Time) (*Marker, error) {
	args := []any{t.Unix(), "requested_at", fork, branch}
	if err := maxFieldScript.Run(ctx, s.client, []string{s.key(issue)}, args...).Err(); err != nil {
		return nil, fmt.Errorf("touch marker %d: %w", issue, err)
	}
	return s.Load(ctx, issue)
}

// Queue sets the queued flag.
func (s *RedisStore) Queue(ctx context.Context, issue int) error {
	if err := s.client.HSet(ctx, s.key(issue), "queued", 1).Err(); err != nil {
		return fmt.Errorf("queue docs build %d: %w", issue, err)
	}
	return nil
}

// MarkDone raises done_at to t and clears the queued flag.
func (s *RedisStore) MarkDone(ctx context.Context, issue int, t time.Time) error {
	args := []any{t.Unix(), "done_at", "", ""}
	if err := maxFieldScript.Run(ctx, s.client, []string{s.key(issue)}, args...).Err(); err != nil {
		return fmt.Errorf("mark done %d: %w", issue, err)
	}
	if err := s.client.HSet(ctx, s.key(issue), "queued", 0).Err(); err != nil {
		return fmt.Errorf("clear queued %d: %w", issue, err)
	}
	return nil
}

func parseUnix(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0).UTC(), nil
}
