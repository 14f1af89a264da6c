package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/capitalize-ai/faqbot/internal/model"
)

// ErrSessionNotFound is returned by a Backend that holds no row for an id.
var ErrSessionNotFound = errors.New("session not found")

// Backend is durable storage for session snapshots.
type Backend interface {
	Save(ctx context.Context, session *model.Session) error
	Load(ctx context.Context, sessionID string) (*model.Session, error)
	Ping(ctx context.Context) error
}

// RedisBackend stores sessions as JSON values that expire with the idle timeout.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisBackend creates a Redis session backend.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client: client,
		ttl:    ttl,
		prefix: "faqbot:session:",
	}
}

// ConnectRedis parses a redis:// URL and verifies the server is reachable.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Save writes a session snapshot and refreshes its expiry.
func (b *RedisBackend) Save(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := b.client.Set(ctx, b.prefix+session.ID, data, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load reads a session snapshot.
func (b *RedisBackend) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	data, err := b.client.Get(ctx, b.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.Messages == nil {
		session.Messages = []model.Message{}
	}
	return &session, nil
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
