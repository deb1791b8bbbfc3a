package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	loopx "github.com/tanpawarit/parcel-scout/agent/loop"
	reasonerx "github.com/tanpawarit/parcel-scout/agent/reasoner"
	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
)

type DeciderFactory func(ctx context.Context) (contractx.Decider, error)

type Config struct {
	Agent      contractx.AgentType
	NewDecider DeciderFactory
	Tools      []contractx.Tool
	MaxRounds  int
}

// Specialist runs one domain's bounded tool loop. The loop is built on first
// use and shared by every later call; a failed build is retried next time.
type Specialist struct {
	cfg Config

	mu     sync.Mutex
	runner *loopx.Runner
}

var _ toolx.SpecialistRunner = (*Specialist)(nil)

func New(cfg Config) (*Specialist, error) {
	switch cfg.Agent {
	case contractx.AgentTypeEco, contractx.AgentTypeLegal, contractx.AgentTypeFinance:
	default:
		return nil, fmt.Errorf("%w: unsupported specialist=%q", contractx.ErrValidation, cfg.Agent)
	}
	if cfg.NewDecider == nil {
		return nil, fmt.Errorf("%w: decider factory is required for specialist=%s", contractx.ErrValidation, cfg.Agent)
	}
	return &Specialist{cfg: cfg}, nil
}

func (s *Specialist) Agent() contractx.AgentType {
	return s.cfg.Agent
}

func (s *Specialist) pipeline(ctx context.Context) (*loopx.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return s.runner, nil
	}

	log.Debug().Str("agent", string(s.cfg.Agent)).Msg("initializing specialist pipeline")

	decider, err := s.cfg.NewDecider(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: init specialist=%s: %v", contractx.ErrModelInvoke, s.cfg.Agent, err)
	}
	runner, err := loopx.New(loopx.Config{
		Agent:     s.cfg.Agent,
		Decider:   decider,
		Tools:     s.cfg.Tools,
		MaxRounds: s.cfg.MaxRounds,
	})
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return runner, nil
}

// Run evaluates the property described by propertyDetails and returns the
// final answer together with every tool step in call order.
func (s *Specialist) Run(ctx context.Context, propertyDetails string) (contractx.SpecialistOutput, error) {
	runner, err := s.pipeline(ctx)
	if err != nil {
		return contractx.SpecialistOutput{}, err
	}

	res, err := runner.Run(ctx, []contractx.Message{
		contractx.NewHumanMessage("Evaluate the property with these details: " + propertyDetails),
	})
	if err != nil {
		return contractx.SpecialistOutput{}, err
	}
	if res.Answer == "" {
		return contractx.SpecialistOutput{}, fmt.Errorf("%w: specialist=%s", contractx.ErrNoAnswer, s.cfg.Agent)
	}

	steps := make([]contractx.IntermediateStep, 0, len(res.Steps))
	for _, step := range res.Steps {
		output := step.Output
		if text, ok := output.(string); ok {
			output = toolx.DecodePayload(text)
		}
		steps = append(steps, contractx.IntermediateStep{Tool: step.Tool, Input: step.Input, Output: output})
	}

	log.Info().
		Str("agent", string(s.cfg.Agent)).
		Int("rounds", res.Rounds).
		Int("steps", len(steps)).
		Msg("specialist completed")

	return contractx.SpecialistOutput{FinalOutput: res.Answer, IntermediateSteps: steps}, nil
}

// Evaluate runs the specialist on listing and decodes its typed verdict.
func Evaluate[D any](ctx context.Context, s *Specialist, listing contractx.PropertyListing) (contractx.DomainEvaluation[D], error) {
	details, err := json.Marshal(listing)
	if err != nil {
		return contractx.DomainEvaluation[D]{}, fmt.Errorf("%w: marshal listing: %v", contractx.ErrValidation, err)
	}

	out, err := s.Run(ctx, string(details))
	if err != nil {
		return contractx.DomainEvaluation[D]{}, err
	}

	verdict, err := reasonerx.ParseVerdict[D](ctx, out.FinalOutput)
	if err != nil {
		return contractx.DomainEvaluation[D]{}, fmt.Errorf("specialist=%s verdict: %w", s.cfg.Agent, err)
	}
	return verdict, nil
}
