package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientInvokeSuccess(t *testing.T) {
	t.Parallel()

	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != InvokePath {
			t.Errorf("path = %s, want %s", r.URL.Path, InvokePath)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"status":"success","data":{"landCover":"forest"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{Service: "environment", BaseURL: server.URL})
	data, err := client.Invoke(context.Background(), "getLandMonitoringData", map[string]any{
		"latitude":  51.2277,
		"longitude": 6.7735,
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if string(data) != `{"landCover":"forest"}` {
		t.Fatalf("Invoke() data = %s", data)
	}
	if got.Operation != "getLandMonitoringData" {
		t.Fatalf("operation = %q", got.Operation)
	}
	if got.Params["latitude"] != 51.2277 || got.Params["longitude"] != 6.7735 {
		t.Fatalf("params not sent verbatim: %#v", got.Params)
	}
}

func TestClientInvokeRemoteError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","message":"Invalid or missing coordinates.","details":{"field":"latitude"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{Service: "regulatory", BaseURL: server.URL})
	_, err := client.Invoke(context.Background(), "getRegulatoryData", nil)

	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Invoke() error = %v, want *Error", err)
	}
	if rpcErr.Kind != KindRemote {
		t.Fatalf("kind = %s, want %s", rpcErr.Kind, KindRemote)
	}
	if rpcErr.Message != "Invalid or missing coordinates." {
		t.Fatalf("message = %q", rpcErr.Message)
	}
	if rpcErr.Details["field"] != "latitude" {
		t.Fatalf("details = %#v", rpcErr.Details)
	}
	if rpcErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", rpcErr.StatusCode)
	}
}

func TestClientInvokeNonEnvelopeStatusIsTransport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{Service: "search", BaseURL: server.URL})
	_, err := client.Invoke(context.Background(), "search", map[string]any{"query": "x"})

	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != KindTransport {
		t.Fatalf("Invoke() error = %v, want transport error", err)
	}
	if rpcErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", rpcErr.StatusCode)
	}
}

func TestClientInvokeConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(ClientConfig{Service: "listing", BaseURL: url, Timeout: time.Second})
	_, err := client.Invoke(context.Background(), "fetchSingleListingByUrl", map[string]any{"url": "https://example.com"})

	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != KindTransport {
		t.Fatalf("Invoke() error = %v, want transport error", err)
	}
}

func TestClientInvokeTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := NewClient(ClientConfig{Service: "search", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Invoke(context.Background(), "search", map[string]any{"query": "slow"})

	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != KindTransport {
		t.Fatalf("Invoke() error = %v, want transport error", err)
	}
}

func TestClientInvokeMalformedSuccessBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{Service: "search", BaseURL: server.URL})
	_, err := client.Invoke(context.Background(), "search", map[string]any{"query": "x"})

	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != KindTransport {
		t.Fatalf("Invoke() error = %v, want transport error", err)
	}
}

func TestClientInvokeRateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":[]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{Service: "search", BaseURL: server.URL, RatePerSecond: 0.01, Burst: 1})
	if _, err := client.Invoke(context.Background(), "search", map[string]any{"query": "first"}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Invoke(ctx, "search", map[string]any{"query": "second"})

	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != KindTransport {
		t.Fatalf("Invoke() error = %v, want transport error", err)
	}
}
