package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the two id sets as Redis sets under prefix:viewed and
// prefix:updated. SADD makes appends idempotent.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url, prefix string, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("progress.redis.open", "addr", opt.Addr, "prefix", prefix)
	return NewRedis(client, prefix, logger), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

func (r *Redis) key(kind string) string {
	return r.prefix + ":" + kind
}

func (r *Redis) Load(ctx context.Context) (Record, error) {
	viewed, err := r.client.SMembers(ctx, r.key(kindViewed)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load viewed: %w", err)
	}
	updated, err := r.client.SMembers(ctx, r.key(kindUpdated)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load updated: %w", err)
	}
	return FromWire(Wire{Viewed: viewed, Updated: updated}), nil
}

func (r *Redis) MarkViewed(ctx context.Context, id string) error {
	return r.client.SAdd(ctx, r.key(kindViewed), id).Err()
}

func (r *Redis) MarkUpdated(ctx context.Context, id string) error {
	return r.client.SAdd(ctx, r.key(kindUpdated), id).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
