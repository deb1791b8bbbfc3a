package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type DecisionRequest struct {
	Agent   AgentType
	History []Message
	Tools   []*schema.ToolInfo
}

// Decider picks the next assistant message: an answer, or one or more tool calls.
type Decider interface {
	Decide(ctx context.Context, req DecisionRequest) (Message, error)
}

type DeciderFunc func(ctx context.Context, req DecisionRequest) (Message, error)

func (f DeciderFunc) Decide(ctx context.Context, req DecisionRequest) (Message, error) {
	return f(ctx, req)
}

// Tool is a named capability the controller can call. Execute never fails:
// problems are reported in the returned payload.
type Tool interface {
	Info() *schema.ToolInfo
	Execute(ctx context.Context, args map[string]any) string
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (AggregatorVerdict, error)
}

type SummaryRequest struct {
	Listing        PropertyListing `json:"propertyDetails"`
	Evaluations    Evaluations     `json:"evaluations"`
	OverallScore   int             `json:"overallScore"`
	Recommendation Recommendation  `json:"recommendation"`
}
