package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	metricsx "github.com/tanpawarit/parcel-scout/pkg/metrics"
)

const DefaultMaxRounds = 8

type State string

const (
	StateAwaitingDecision State = "AWAITING_DECISION"
	StateExecutingTools   State = "EXECUTING_TOOLS"
	StateTerminated       State = "TERMINATED"
)

type Config struct {
	Agent   contractx.AgentType
	Decider contractx.Decider
	Tools   []contractx.Tool
	// MaxRounds bounds the number of decisions per run. Zero means DefaultMaxRounds.
	MaxRounds int
	// MaxParallel limits concurrent tool calls within one round. Zero means unlimited.
	MaxParallel int
}

// Result of one run. Messages holds only what the run appended to the log.
type Result struct {
	Answer   string
	Messages []contractx.Message
	Steps    []contractx.IntermediateStep
	Rounds   int
}

// Runner drives the decide → execute tools → decide cycle until the
// decider answers without tool calls.
type Runner struct {
	agent       contractx.AgentType
	decider     contractx.Decider
	tools       map[string]contractx.Tool
	infos       []*schema.ToolInfo
	maxRounds   int
	maxParallel int
}

func New(cfg Config) (*Runner, error) {
	if cfg.Decider == nil {
		return nil, fmt.Errorf("%w: decider is required for agent=%s", contractx.ErrValidation, cfg.Agent)
	}

	tools := make(map[string]contractx.Tool, len(cfg.Tools))
	infos := make([]*schema.ToolInfo, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if t == nil || t.Info() == nil {
			continue
		}
		name := strings.TrimSpace(t.Info().Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool without name for agent=%s", contractx.ErrValidation, cfg.Agent)
		}
		if _, dup := tools[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool=%s for agent=%s", contractx.ErrValidation, name, cfg.Agent)
		}
		tools[name] = t
		infos = append(infos, t.Info())
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	return &Runner{
		agent:       cfg.Agent,
		decider:     cfg.Decider,
		tools:       tools,
		infos:       infos,
		maxRounds:   maxRounds,
		maxParallel: cfg.MaxParallel,
	}, nil
}

func (r *Runner) ToolInfos() []*schema.ToolInfo {
	return r.infos
}

// Run continues the conversation in history. history is not modified.
func (r *Runner) Run(ctx context.Context, history []contractx.Message) (Result, error) {
	if len(history) == 0 {
		return Result{}, fmt.Errorf("%w: history is empty", contractx.ErrValidation)
	}

	transcript := make([]contractx.Message, len(history), len(history)+8)
	copy(transcript, history)

	var (
		res     Result
		state   = StateAwaitingDecision
		pending []contractx.ToolCall
		callIDs = declaredCallIDs(history)
	)

	defer func() {
		metricsx.DecisionRounds.WithLabelValues(string(r.agent)).Observe(float64(res.Rounds))
	}()

	for state != StateTerminated {
		switch state {
		case StateAwaitingDecision:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if res.Rounds >= r.maxRounds {
				return res, fmt.Errorf("%w: agent=%s rounds=%d", contractx.ErrRoundBudgetExceeded, r.agent, res.Rounds)
			}

			msg, err := r.decider.Decide(ctx, contractx.DecisionRequest{
				Agent:   r.agent,
				History: transcript,
				Tools:   r.infos,
			})
			if err != nil {
				return res, err
			}
			if msg.Kind != contractx.MessageAssistant {
				return res, fmt.Errorf("%w: decider returned kind=%s", contractx.ErrSchemaViolation, msg.Kind)
			}
			res.Rounds++

			msg.ToolCalls = uniqueCallIDs(msg.ToolCalls, callIDs)
			transcript = append(transcript, msg)
			res.Messages = append(res.Messages, msg)

			if !msg.HasToolCalls() {
				res.Answer = strings.TrimSpace(msg.Content)
				state = StateTerminated
				continue
			}

			log.Debug().
				Str("agent", string(r.agent)).
				Int("round", res.Rounds).
				Int("tool_calls", len(msg.ToolCalls)).
				Msg("executing tool round")

			pending = msg.ToolCalls
			state = StateExecutingTools

		case StateExecutingTools:
			payloads := r.executeRound(ctx, pending)
			for i, call := range pending {
				result := contractx.NewToolResultMessage(call.ID, call.Tool, payloads[i])
				transcript = append(transcript, result)
				res.Messages = append(res.Messages, result)
				res.Steps = append(res.Steps, contractx.IntermediateStep{
					Tool:   call.Tool,
					Input:  call.Args,
					Output: payloads[i],
				})
			}
			pending = nil
			state = StateAwaitingDecision
		}
	}

	log.Debug().
		Str("agent", string(r.agent)).
		Int("rounds", res.Rounds).
		Int("steps", len(res.Steps)).
		Msg("agent loop terminated")

	return res, nil
}

func declaredCallIDs(history []contractx.Message) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, msg := range history {
		for _, call := range msg.ToolCalls {
			ids[call.ID] = struct{}{}
		}
	}
	return ids
}

// uniqueCallIDs returns calls with every empty or already declared id
// replaced, so each tool result pairs with exactly one call. calls is not
// modified. seen is updated with the returned ids.
func uniqueCallIDs(calls []contractx.ToolCall, seen map[string]struct{}) []contractx.ToolCall {
	if len(calls) == 0 {
		return calls
	}
	out := make([]contractx.ToolCall, len(calls))
	for i, call := range calls {
		id := strings.TrimSpace(call.ID)
		if _, dup := seen[id]; dup || id == "" {
			id = "call_" + uuid.NewString()
		}
		call.ID = id
		seen[id] = struct{}{}
		out[i] = call
	}
	return out
}

// executeRound runs every call concurrently and returns payloads in declared order.
func (r *Runner) executeRound(ctx context.Context, calls []contractx.ToolCall) []string {
	payloads := make([]string, len(calls))

	var g errgroup.Group
	if r.maxParallel > 0 {
		g.SetLimit(r.maxParallel)
	}
	for i, call := range calls {
		g.Go(func() error {
			payloads[i] = r.execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return payloads
}

func (r *Runner) execute(ctx context.Context, call contractx.ToolCall) (payload string) {
	defer func() {
		if rec := recover(); rec != nil {
			payload = fmt.Sprintf("Error: tool '%s' failed unexpectedly: %v", call.Tool, rec)
		}
	}()

	t, ok := r.tools[call.Tool]
	if !ok {
		return fmt.Sprintf("Error: tool '%s' is not available to this agent.", call.Tool)
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, args)
}
