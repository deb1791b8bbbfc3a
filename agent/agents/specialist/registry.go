package specialist

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	llmx "github.com/tanpawarit/parcel-scout/agent/llm"
	promptx "github.com/tanpawarit/parcel-scout/agent/prompt"
	reasonerx "github.com/tanpawarit/parcel-scout/agent/reasoner"
	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
)

// Registry holds every model-backed agent of the system.
type Registry struct {
	Orchestrator contractx.Decider
	Eco          *Specialist
	Legal        *Specialist
	Finance      *Specialist
	Judge        contractx.Summarizer
}

func NewRegistry(ctx context.Context, cfg llmx.Config, clients toolx.DataClients, maxRounds int) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	orchestratorPrompt, err := prompts.For(contractx.AgentTypeOrchestrator)
	if err != nil {
		return nil, err
	}
	orchestratorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeOrchestrator)
	orchestratorModel, err := orchestratorModelCfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create orchestrator model: %v", contractx.ErrModelInvoke, err)
	}
	orchestrator, err := reasonerx.NewChatDecider(contractx.AgentTypeOrchestrator, orchestratorModel, orchestratorPrompt)
	if err != nil {
		return nil, err
	}

	aggregatorPrompt, err := prompts.For(contractx.AgentTypeAggregator)
	if err != nil {
		return nil, err
	}
	aggregatorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeAggregator)
	aggregatorModel, err := aggregatorModelCfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create aggregator model: %v", contractx.ErrModelInvoke, err)
	}
	judge, err := reasonerx.NewJudge(ctx, aggregatorModel, aggregatorPrompt)
	if err != nil {
		return nil, err
	}

	reg := &Registry{Orchestrator: orchestrator, Judge: judge}
	for _, agent := range []contractx.AgentType{contractx.AgentTypeEco, contractx.AgentTypeLegal, contractx.AgentTypeFinance} {
		prompt, err := prompts.For(agent)
		if err != nil {
			return nil, err
		}
		spec, err := New(Config{
			Agent:      agent,
			NewDecider: chatDeciderFactory(cfg, agent, prompt),
			Tools:      toolx.ForSpecialist(agent, clients),
			MaxRounds:  maxRounds,
		})
		if err != nil {
			return nil, err
		}
		switch agent {
		case contractx.AgentTypeEco:
			reg.Eco = spec
		case contractx.AgentTypeLegal:
			reg.Legal = spec
		case contractx.AgentTypeFinance:
			reg.Finance = spec
		}
	}
	return reg, nil
}

func chatDeciderFactory(cfg llmx.Config, agent contractx.AgentType, prompt string) DeciderFactory {
	return func(ctx context.Context) (contractx.Decider, error) {
		modelCfg := cfg.OpenRouterFor(agent)
		chatModel, err := modelCfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("create %s model: %w", agent, err)
		}
		return reasonerx.NewChatDecider(agent, chatModel, prompt)
	}
}
