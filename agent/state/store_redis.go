package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	TTL      time.Duration `envconfig:"TTL" default:"24h"`
}

func RedisOptions(cfg RedisConfig) *redis.Options {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	db := cfg.DB
	if db < 0 {
		db = 0
	}
	return &redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       db,
	}
}

// RedisStore keeps sessions in a Redis server with the same key layout as
// UpstashRedisStore.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	metaKey, messagesKey, err := sessionKeys(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	encodedMeta, err := s.client.Get(ctx, metaKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, contractx.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", metaKey, err)
	}
	meta, err := parseMeta(encodedMeta)
	if err != nil {
		return nil, err
	}

	encoded, err := s.client.LRange(ctx, messagesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", messagesKey, err)
	}
	return decodeSession(meta, encoded)
}

func (s *RedisStore) Create(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	metaKey, _, err := sessionKeys(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	session := NewSession(sessionID, now)
	payload, err := encodeMeta(session)
	if err != nil {
		return nil, err
	}

	created, err := s.client.SetNX(ctx, metaKey, payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", metaKey, err)
	}
	if !created {
		return s.Load(ctx, sessionID)
	}
	return session, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...contractx.Message) error {
	metaKey, messagesKey, err := sessionKeys(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}

	exists, err := s.client.Exists(ctx, metaKey).Result()
	if err != nil {
		return fmt.Errorf("redis exists %s: %w", metaKey, err)
	}
	if exists == 0 {
		return contractx.ErrSessionNotFound
	}
	if len(msgs) == 0 {
		return nil
	}

	encoded, err := encodeMessages(msgs)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, messagesKey, encoded...)
		if s.ttl > 0 {
			pipe.Expire(ctx, metaKey, s.ttl)
			pipe.Expire(ctx, messagesKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append %s: %w", messagesKey, err)
	}
	return nil
}
