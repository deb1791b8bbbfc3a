package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
)

func LoadOrCreateSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	session, err := store.Create(ctx, in.SessionID, in.Now)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", in.SessionID, err)
	}
	in.Session = session
	return in, nil
}
