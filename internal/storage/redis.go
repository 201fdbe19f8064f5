package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketwatch/internal/model"
)

// DefaultRedisKey is the hash holding fired alerts.
const DefaultRedisKey = "ticketwatch:alerts"

// Redis implements StateStore on a single Redis hash: field is the alert
// key, value is the RFC 3339 time it fired.
type Redis struct {
	client redis.UniversalClient
	key    string
	log    *slog.Logger
}

// NewRedis creates a Redis state store using hash key.
func NewRedis(client redis.UniversalClient, key string, log *slog.Logger) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, log: log}
}

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Load implements StateStore. A missing hash is an empty state.
func (r *Redis) Load(ctx context.Context) (model.AlertState, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}

	state := make(model.AlertState, len(fields))
	for k, v := range fields {
		rec := model.AlertRecord{Key: model.AlertKey(k)}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.FiredAt = &t
		} else {
			r.log.Warn("alert record has unreadable timestamp, treating as fired", "key", k, "fired_at", v)
		}
		state[rec.Key] = rec
	}
	return state, nil
}

// Save implements StateStore by replacing the hash atomically.
func (r *Redis) Save(ctx context.Context, state model.AlertState) error {
	values := make([]any, 0, len(state)*2)
	for _, k := range sortedKeys(state) {
		v := ""
		if rec := state[k]; rec.FiredAt != nil {
			v = rec.FiredAt.UTC().Format(time.RFC3339Nano)
		}
		values = append(values, string(k), v)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", r.key, err)
	}
	return nil
}

// DeleteAlert purges one fired key.
func (r *Redis) DeleteAlert(ctx context.Context, key model.AlertKey) error {
	n, err := r.client.HDel(ctx, r.key, string(key)).Result()
	if err != nil {
		return fmt.Errorf("hdel %s: %w", r.key, err)
	}
	if n == 0 {
		return fmt.Errorf("alert %q: %w", key, ErrNotFound)
	}
	return nil
}
