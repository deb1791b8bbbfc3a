package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
)

func SaveSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	candidate := &statex.Session{
		SessionID: in.Session.SessionID,
		CreatedAt: in.Session.CreatedAt,
		Messages:  append(append([]contractx.Message(nil), in.Session.Messages...), in.Appended...),
	}
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if err := store.Append(ctx, in.SessionID, in.Appended...); err != nil {
		return nil, fmt.Errorf("append session %s: %w", in.SessionID, err)
	}

	in.Session = candidate
	return in, nil
}
