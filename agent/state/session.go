package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// Session is one conversation: an opaque id and its append-only message log.
type Session struct {
	SessionID string              `json:"session_id"`
	CreatedAt time.Time           `json:"created_at"`
	Messages  []contractx.Message `json:"messages,omitempty"`
}

func NewSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: strings.TrimSpace(sessionID),
		CreatedAt: now.UTC(),
	}
}

// Validate checks the log shape: every tool call id is declared once, and
// every tool result answers exactly one earlier, still unanswered call.
func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}

	answered := make(map[string]bool)
	for i, msg := range s.Messages {
		switch msg.Kind {
		case contractx.MessageHuman:
		case contractx.MessageAssistant:
			for _, call := range msg.ToolCalls {
				if strings.TrimSpace(call.ID) == "" {
					return fmt.Errorf("%w: message %d has a tool call without id", contractx.ErrValidation, i)
				}
				if _, dup := answered[call.ID]; dup {
					return fmt.Errorf("%w: message %d redeclares call id=%s", contractx.ErrValidation, i, call.ID)
				}
				answered[call.ID] = false
			}
		case contractx.MessageToolResult:
			if strings.TrimSpace(msg.CallID) == "" {
				return fmt.Errorf("%w: message %d is a tool result without call id", contractx.ErrValidation, i)
			}
			done, declared := answered[msg.CallID]
			if !declared {
				return fmt.Errorf("%w: message %d answers undeclared call id=%s", contractx.ErrValidation, i, msg.CallID)
			}
			if done {
				return fmt.Errorf("%w: message %d answers call id=%s twice", contractx.ErrValidation, i, msg.CallID)
			}
			answered[msg.CallID] = true
		default:
			return fmt.Errorf("%w: message %d has unknown kind=%q", contractx.ErrValidation, i, msg.Kind)
		}
	}
	return nil
}

func (s *Session) clone() *Session {
	out := *s
	out.Messages = append([]contractx.Message(nil), s.Messages...)
	return &out
}
