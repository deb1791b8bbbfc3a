package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Result.Answer)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: orchestrator returned empty message", contractx.ErrNoAnswer)
	}
	return GraphOutput{
		SessionID: in.SessionID,
		Reply:     reply,
		Trace:     in.Trace,
	}, nil
}
