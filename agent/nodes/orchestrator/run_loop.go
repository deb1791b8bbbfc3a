package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	loopx "github.com/tanpawarit/parcel-scout/agent/loop"
)

func RunLoop(ctx context.Context, in *GraphState, runner *loopx.Runner) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	human := contractx.NewHumanMessage(in.Text)
	history := make([]contractx.Message, 0, len(in.Session.Messages)+1)
	history = append(history, in.Session.Messages...)
	history = append(history, human)

	res, err := runner.Run(ctx, history)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", in.SessionID).
			Int("rounds", res.Rounds).
			Msg("conversation turn did not terminate")
		return nil, err
	}
	if strings.TrimSpace(res.Answer) == "" {
		return nil, fmt.Errorf("%w: session=%s", contractx.ErrNoAnswer, in.SessionID)
	}

	in.Result = res
	in.Appended = append([]contractx.Message{human}, res.Messages...)

	log.Debug().
		Str("session_id", in.SessionID).
		Int("rounds", res.Rounds).
		Int("appended", len(in.Appended)).
		Msg("conversation turn terminated")
	return in, nil
}
