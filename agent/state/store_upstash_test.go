package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// fakeUpstash answers the subset of Redis commands the store issues.
type fakeUpstash struct {
	mu       sync.Mutex
	strings  map[string]string
	lists    map[string][]string
	commands [][]any
}

func newFakeUpstash(t *testing.T) (*fakeUpstash, *httptest.Server) {
	t.Helper()

	fake := &fakeUpstash{strings: map[string]string{}, lists: map[string][]string{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"unauthorized"}`)
			return
		}
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result := fake.apply(cmd)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeUpstash) apply(cmd []any) any {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, cmd)
	name := fmt.Sprint(cmd[0])
	key := fmt.Sprint(cmd[1])
	switch name {
	case "GET":
		v, ok := f.strings[key]
		if !ok {
			return nil
		}
		return v
	case "SET":
		if _, ok := f.strings[key]; ok {
			return nil
		}
		f.strings[key] = fmt.Sprint(cmd[2])
		return "OK"
	case "EXISTS":
		if _, ok := f.strings[key]; ok {
			return 1
		}
		return 0
	case "RPUSH":
		for _, v := range cmd[2:] {
			f.lists[key] = append(f.lists[key], fmt.Sprint(v))
		}
		return len(f.lists[key])
	case "LRANGE":
		out := f.lists[key]
		if out == nil {
			out = []string{}
		}
		return out
	case "EXPIRE":
		return 1
	default:
		return nil
	}
}

func (f *fakeUpstash) commandNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		out = append(out, fmt.Sprint(cmd[0]))
	}
	return out
}

func newTestUpstashStore(t *testing.T, server *httptest.Server, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreKeys(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{keyPrefix: "scout:"}
	meta, messages, err := store.keys("abc")
	if err != nil {
		t.Fatalf("keys() error = %v", err)
	}
	if meta != "scout:abc:meta" || messages != "scout:abc:messages" {
		t.Fatalf("keys() = %q, %q", meta, messages)
	}

	if _, _, err := store.keys("   "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("keys() error = %v, want ErrInvalidSession", err)
	}
}

func TestUpstashRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	_, server := newFakeUpstash(t)
	store := newTestUpstashStore(t, server)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.Create(ctx, "s-1", now); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	msgs := []contractx.Message{
		contractx.NewHumanMessage("evaluate https://example.com/plot"),
		contractx.NewAssistantMessage("", contractx.ToolCall{ID: "c1", Tool: "scrapeListing", Args: map[string]any{"url": "https://example.com/plot"}}),
		contractx.NewToolResultMessage("c1", "scrapeListing", `{"id":"x"}`),
		contractx.NewAssistantMessage("done"),
	}
	if err := store.Append(ctx, "s-1", msgs...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	loaded, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", loaded.CreatedAt, now)
	}
	if len(loaded.Messages) != len(msgs) {
		t.Fatalf("len(Messages) = %d, want %d", len(loaded.Messages), len(msgs))
	}
	if loaded.Messages[1].ToolCalls[0].Args["url"] != "https://example.com/plot" {
		t.Fatalf("tool call args lost: %#v", loaded.Messages[1].ToolCalls[0])
	}
	if loaded.Messages[2].CallID != "c1" {
		t.Fatalf("CallID = %q, want c1", loaded.Messages[2].CallID)
	}
}

func TestUpstashRedisStoreCreateKeepsExistingSession(t *testing.T) {
	t.Parallel()

	_, server := newFakeUpstash(t)
	store := newTestUpstashStore(t, server)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.Create(ctx, "s-1", first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	again, err := store.Create(ctx, "s-1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !again.CreatedAt.Equal(first) {
		t.Fatalf("CreatedAt = %v, want %v", again.CreatedAt, first)
	}
}

func TestUpstashRedisStoreUnknownSession(t *testing.T) {
	t.Parallel()

	_, server := newFakeUpstash(t)
	store := newTestUpstashStore(t, server)

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, contractx.ErrSessionNotFound) {
		t.Fatalf("Load() error = %v, want ErrSessionNotFound", err)
	}
	err := store.Append(context.Background(), "missing", contractx.NewHumanMessage("x"))
	if !errors.Is(err, contractx.ErrSessionNotFound) {
		t.Fatalf("Append() error = %v, want ErrSessionNotFound", err)
	}
}

func TestUpstashRedisStoreTTLCommands(t *testing.T) {
	t.Parallel()

	fake, server := newFakeUpstash(t)
	store := newTestUpstashStore(t, server, WithTTL(90*time.Second))
	ctx := context.Background()

	if _, err := store.Create(ctx, "s-1", time.Now()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Append(ctx, "s-1", contractx.NewHumanMessage("x")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got := strings.Join(fake.commandNames(), ",")
	want := "SET,EXISTS,RPUSH,EXPIRE,EXPIRE"
	if got != want {
		t.Fatalf("commands = %s, want %s", got, want)
	}

	fake.mu.Lock()
	setCmd := fake.commands[0]
	fake.mu.Unlock()
	if len(setCmd) != 6 || setCmd[3] != "NX" || setCmd[4] != "EX" || setCmd[5] != float64(90) {
		t.Fatalf("SET command = %#v", setCmd)
	}
}

func TestUpstashRedisStoreWithoutTTLSkipsExpire(t *testing.T) {
	t.Parallel()

	fake, server := newFakeUpstash(t)
	store := newTestUpstashStore(t, server, WithTTL(0))
	ctx := context.Background()

	if _, err := store.Create(ctx, "s-1", time.Now()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Append(ctx, "s-1", contractx.NewHumanMessage("x")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if got := strings.Join(fake.commandNames(), ","); got != "SET,EXISTS,RPUSH" {
		t.Fatalf("commands = %s", got)
	}
}

func TestUpstashRedisStoreSurfacesRedisError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGTYPE Operation against a key holding the wrong kind of value"}`)
	}))
	t.Cleanup(server.Close)

	store := newTestUpstashStore(t, server)
	_, err := store.Load(context.Background(), "s-1")
	if err == nil || !strings.Contains(err.Error(), "WRONGTYPE") {
		t.Fatalf("Load() error = %v, want WRONGTYPE", err)
	}
}

func TestNewUpstashRedisStoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "t"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "http://localhost"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "http://localhost", Token: "t"}, WithTTL(-time.Second)); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	if got := ttlSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("ttlSeconds() = %d, want 2", got)
	}
	if got := ttlSeconds(time.Millisecond); got != 1 {
		t.Fatalf("ttlSeconds() = %d, want 1", got)
	}
}
