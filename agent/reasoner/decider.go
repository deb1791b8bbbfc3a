package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// ChatDecider asks a tool-calling chat model for the next assistant message.
// One decision graph is compiled per distinct tool menu and reused afterwards.
type ChatDecider struct {
	agent        contractx.AgentType
	chatModel    einomodel.ToolCallingChatModel
	systemPrompt string

	mu      sync.Mutex
	runners map[string]compose.Runnable[[]contractx.Message, contractx.Message]
}

var _ contractx.Decider = (*ChatDecider)(nil)

func NewChatDecider(
	agent contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
) (*ChatDecider, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is nil for agent=%s", contractx.ErrValidation, agent)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agent)
	}
	return &ChatDecider{
		agent:        agent,
		chatModel:    chatModel,
		systemPrompt: systemPrompt,
		runners:      map[string]compose.Runnable[[]contractx.Message, contractx.Message]{},
	}, nil
}

func (d *ChatDecider) Decide(ctx context.Context, req contractx.DecisionRequest) (contractx.Message, error) {
	if len(req.History) == 0 {
		return contractx.Message{}, fmt.Errorf("%w: decision history is empty", contractx.ErrValidation)
	}

	runner, err := d.runnerFor(ctx, req.Tools)
	if err != nil {
		return contractx.Message{}, err
	}

	out, err := runner.Invoke(ctx, req.History)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: agent=%s decide: %v", contractx.ErrModelInvoke, d.agent, err)
	}
	return out, nil
}

func (d *ChatDecider) runnerFor(
	ctx context.Context,
	tools []*schema.ToolInfo,
) (compose.Runnable[[]contractx.Message, contractx.Message], error) {
	key := toolMenuKey(tools)

	d.mu.Lock()
	defer d.mu.Unlock()

	if runner, ok := d.runners[key]; ok {
		return runner, nil
	}

	chatModel := d.chatModel
	if len(tools) > 0 {
		bound, err := d.chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, d.agent, err)
		}
		chatModel = bound
	}

	runner, err := compileDecisionGraph(ctx, chatModel, d.systemPrompt, string(d.agent)+".decision_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile decision graph for agent=%s: %v", contractx.ErrModelInvoke, d.agent, err)
	}
	d.runners[key] = runner
	return runner, nil
}

func toolMenuKey(tools []*schema.ToolInfo) string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t != nil {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func compileDecisionGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[[]contractx.Message, contractx.Message], error) {
	graph := compose.NewGraph[[]contractx.Message, contractx.Message]()

	if err := graph.AddLambdaNode("to_chat_messages",
		compose.InvokableLambda(func(ctx context.Context, history []contractx.Message) ([]*schema.Message, error) {
			return toChatMessages(systemPrompt, history)
		}),
	); err != nil {
		return nil, fmt.Errorf("add decision history node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add decision model node: %w", err)
	}
	if err := graph.AddLambdaNode("to_assistant_message",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (contractx.Message, error) {
			return fromChatMessage(msg)
		}),
	); err != nil {
		return nil, fmt.Errorf("add decision output node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "to_chat_messages"); err != nil {
		return nil, fmt.Errorf("add decision edge start->history: %w", err)
	}
	if err := graph.AddEdge("to_chat_messages", "model"); err != nil {
		return nil, fmt.Errorf("add decision edge history->model: %w", err)
	}
	if err := graph.AddEdge("model", "to_assistant_message"); err != nil {
		return nil, fmt.Errorf("add decision edge model->output: %w", err)
	}
	if err := graph.AddEdge("to_assistant_message", compose.END); err != nil {
		return nil, fmt.Errorf("add decision edge output->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile decision graph: %w", err)
	}
	return runner, nil
}

func toChatMessages(systemPrompt string, history []contractx.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(history)+1)
	out = append(out, schema.SystemMessage(systemPrompt))

	for _, msg := range history {
		switch msg.Kind {
		case contractx.MessageHuman:
			out = append(out, schema.UserMessage(msg.Content))
		case contractx.MessageAssistant:
			calls := make([]schema.ToolCall, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					return nil, fmt.Errorf("%w: marshal args for tool=%s: %v", contractx.ErrValidation, call.Tool, err)
				}
				calls = append(calls, schema.ToolCall{
					ID:   call.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      call.Tool,
						Arguments: string(args),
					},
				})
			}
			out = append(out, schema.AssistantMessage(msg.Content, calls))
		case contractx.MessageToolResult:
			out = append(out, schema.ToolMessage(msg.Content, msg.CallID))
		default:
			return nil, fmt.Errorf("%w: unknown message kind=%q", contractx.ErrValidation, msg.Kind)
		}
	}
	return out, nil
}

func fromChatMessage(msg *schema.Message) (contractx.Message, error) {
	if msg == nil {
		return contractx.Message{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	calls, err := toToolCalls(msg.ToolCalls)
	if err != nil {
		return contractx.Message{}, err
	}

	content := strings.TrimSpace(msg.Content)
	if len(calls) == 0 && content == "" {
		return contractx.Message{}, fmt.Errorf("%w: response has neither text nor tool calls", contractx.ErrSchemaViolation)
	}
	return contractx.NewAssistantMessage(content, calls...), nil
}

func toToolCalls(calls []schema.ToolCall) ([]contractx.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]contractx.ToolCall, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
			}
		}

		id := strings.TrimSpace(call.ID)
		if id == "" {
			id = "call_" + uuid.NewString()
		}

		out = append(out, contractx.ToolCall{
			ID:   id,
			Tool: tool,
			Args: args,
		})
	}
	return out, nil
}
