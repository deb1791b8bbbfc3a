package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// Judge turns the aggregated evaluation input into a verdict proposal.
type Judge struct {
	runner compose.Runnable[map[string]any, contractx.AggregatorVerdict]
}

var _ contractx.Summarizer = (*Judge)(nil)

func NewJudge(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Judge, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, contractx.AgentTypeAggregator)
	}
	runner, err := compileStructuredLLMGraph[contractx.AggregatorVerdict](ctx, chatModel, systemPrompt, "aggregator.judge_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile judge graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Judge{runner: runner}, nil
}

func (j *Judge) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.AggregatorVerdict, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return contractx.AggregatorVerdict{}, fmt.Errorf("%w: marshal judge payload: %v", contractx.ErrValidation, err)
	}

	out, err := j.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.AggregatorVerdict{}, fmt.Errorf("%w: judge invoke: %v", contractx.ErrModelInvoke, err)
	}

	out.ExecutiveSummary = strings.TrimSpace(out.ExecutiveSummary)
	if out.ExecutiveSummary == "" {
		return contractx.AggregatorVerdict{}, fmt.Errorf("%w: executive summary is empty", contractx.ErrSchemaViolation)
	}
	if !out.Recommendation.Valid() {
		return contractx.AggregatorVerdict{}, fmt.Errorf("%w: unknown recommendation=%q", contractx.ErrSchemaViolation, out.Recommendation)
	}
	return out, nil
}

func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("unwrap_json", compose.InvokableLambda(unwrapJSONContent)); err != nil {
		return nil, fmt.Errorf("add structured unwrap node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "unwrap_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->unwrap: %w", err)
	}
	if err := graph.AddEdge("unwrap_json", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge unwrap->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

func unwrapJSONContent(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}
	out := *msg
	out.Content = ExtractJSON(msg.Content)
	return &out, nil
}
