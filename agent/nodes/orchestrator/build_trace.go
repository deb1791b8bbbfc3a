package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	tracex "github.com/tanpawarit/parcel-scout/agent/trace"
)

// BuildTrace covers the current turn only.
func BuildTrace(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Trace = tracex.Build(in.Appended)
	return in, nil
}
