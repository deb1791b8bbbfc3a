package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	loopx "github.com/tanpawarit/parcel-scout/agent/loop"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
)

var (
	ErrInvalidMessage = fmt.Errorf("%w: input is empty", contractx.ErrValidation)
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	SessionID string
	Reply     string
	Trace     []contractx.TraceEntry
}

// GraphState flows through one conversation turn.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session *statex.Session
	// Appended holds every message this turn adds to the session log,
	// starting with the human input.
	Appended []contractx.Message
	Result   loopx.Result
	Trace    []contractx.TraceEntry
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
