package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	metricsx "github.com/tanpawarit/parcel-scout/pkg/metrics"
)

// run executes fn and records its outcome; a panic becomes an "Error ..."
// payload. Exactly one log record is written per call.
func run(ctx context.Context, name string, args map[string]any, fn func(ctx context.Context) (string, bool)) (payload string) {
	start := time.Now()
	outcome := "success"

	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			payload = fmt.Sprintf("Error: tool '%s' failed unexpectedly: %v", name, r)
		}

		elapsed := time.Since(start)
		metricsx.ToolDuration.WithLabelValues(name, outcome).Observe(elapsed.Seconds())

		event := log.Info()
		if outcome != "success" {
			event = log.Warn()
		}
		event.
			Str("tool", name).
			Interface("args", args).
			Dur("duration", elapsed).
			Str("outcome", outcome).
			Msg("tool invoked")
	}()

	out, ok := fn(ctx)
	if !ok {
		outcome = "error"
	}
	return out
}

// normalize renders a JSON payload as text: strings are unquoted, anything
// else is compacted.
func normalize(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", fmt.Errorf("empty payload")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("malformed payload: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("re-encode payload: %v", err)
	}
	return string(out), nil
}

// DecodePayload returns the JSON value encoded in s, or s itself when it is
// not a JSON object or array.
func DecodePayload(s string) any {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return s
	}
	return v
}
