package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

var (
	//go:embed template/orchestrator.txt
	orchestratorRaw string

	//go:embed template/eco.txt
	ecoRaw string

	//go:embed template/legal.txt
	legalRaw string

	//go:embed template/finance.txt
	financeRaw string

	//go:embed template/aggregator.txt
	aggregatorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Orchestrator string
	Eco          string
	Legal        string
	Finance      string
	Aggregator   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Orchestrator: strings.TrimSpace(orchestratorRaw),
		Eco:          strings.TrimSpace(ecoRaw),
		Legal:        strings.TrimSpace(legalRaw),
		Finance:      strings.TrimSpace(financeRaw),
		Aggregator:   strings.TrimSpace(aggregatorRaw),
	}
}

// For returns the system prompt of one agent.
func (p PromptSet) For(agentType contractx.AgentType) (string, error) {
	var out string
	switch agentType {
	case contractx.AgentTypeOrchestrator:
		out = p.Orchestrator
	case contractx.AgentTypeEco:
		out = p.Eco
	case contractx.AgentTypeLegal:
		out = p.Legal
	case contractx.AgentTypeFinance:
		out = p.Finance
	case contractx.AgentTypeAggregator:
		out = p.Aggregator
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agentType)
	}
	return out, nil
}
