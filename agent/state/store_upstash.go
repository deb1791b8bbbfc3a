package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

const (
	defaultStoreKeyPrefix = "parcel-scout:session:"
	defaultStoreTTL       = 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists sessions in Upstash Redis via REST. Session
// metadata lives under <prefix><id>:meta and the log is a Redis list under
// <prefix><id>:messages, one JSON message per element.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"24h"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       ttl,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	metaKey, messagesKey, err := s.keys(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", metaKey})
	if err != nil {
		return nil, err
	}
	meta, ok, err := decodeMeta(resp.Result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, contractx.ErrSessionNotFound
	}

	resp, err = s.exec(ctx, []any{"LRANGE", messagesKey, 0, -1})
	if err != nil {
		return nil, err
	}
	var encoded []string
	if err := json.Unmarshal(resp.Result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}

	return decodeSession(meta, encoded)
}

func (s *UpstashRedisStore) Create(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	metaKey, _, err := s.keys(sessionID)
	if err != nil {
		return nil, err
	}

	session := NewSession(sessionID, now)
	payload, err := encodeMeta(session)
	if err != nil {
		return nil, err
	}

	cmd := []any{"SET", metaKey, payload, "NX"}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}
	resp, err := s.exec(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// SET NX answers null when the key already exists.
	if isNull(resp.Result) {
		return s.Load(ctx, sessionID)
	}
	return session, nil
}

func (s *UpstashRedisStore) Append(ctx context.Context, sessionID string, msgs ...contractx.Message) error {
	metaKey, messagesKey, err := s.keys(sessionID)
	if err != nil {
		return err
	}

	resp, err := s.exec(ctx, []any{"EXISTS", metaKey})
	if err != nil {
		return err
	}
	var exists int
	if err := json.Unmarshal(resp.Result, &exists); err != nil {
		return fmt.Errorf("decode exists reply: %w", err)
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
	cmd := make([]any, 0, len(encoded)+2)
	cmd = append(cmd, "RPUSH", messagesKey)
	cmd = append(cmd, encoded...)
	if _, err := s.exec(ctx, cmd); err != nil {
		return err
	}

	if s.ttl > 0 {
		for _, key := range []string{metaKey, messagesKey} {
			if _, err := s.exec(ctx, []any{"EXPIRE", key, ttlSeconds(s.ttl)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *UpstashRedisStore) keys(sessionID string) (meta string, messages string, err error) {
	return sessionKeys(s.keyPrefix, sessionID)
}

func decodeMeta(result json.RawMessage) (sessionMeta, bool, error) {
	if isNull(result) {
		return sessionMeta{}, false, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return sessionMeta{}, false, fmt.Errorf("decode session meta payload: %w", err)
	}
	meta, err := parseMeta(encoded)
	if err != nil {
		return sessionMeta{}, false, err
	}
	return meta, true, nil
}

func isNull(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
