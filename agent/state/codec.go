package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

type sessionMeta struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// sessionKeys returns <prefix><id>:meta and <prefix><id>:messages.
func sessionKeys(prefix, sessionID string) (meta string, messages string, err error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", "", ErrInvalidSession
	}
	base := strings.TrimSpace(prefix) + id
	return base + ":meta", base + ":messages", nil
}

func encodeMeta(s *Session) (string, error) {
	payload, err := json.Marshal(sessionMeta{SessionID: s.SessionID, CreatedAt: s.CreatedAt})
	if err != nil {
		return "", fmt.Errorf("marshal session meta: %w", err)
	}
	return string(payload), nil
}

func parseMeta(encoded string) (sessionMeta, error) {
	var meta sessionMeta
	if err := json.Unmarshal([]byte(encoded), &meta); err != nil {
		return sessionMeta{}, fmt.Errorf("unmarshal session meta: %w", err)
	}
	return meta, nil
}

func encodeMessages(msgs []contractx.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal session message: %w", err)
		}
		out = append(out, string(payload))
	}
	return out, nil
}

func decodeSession(meta sessionMeta, encoded []string) (*Session, error) {
	session := &Session{SessionID: meta.SessionID, CreatedAt: meta.CreatedAt}
	for i, raw := range encoded {
		var msg contractx.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal session message %d: %w", i, err)
		}
		session.Messages = append(session.Messages, msg)
	}

	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}
	return session, nil
}
