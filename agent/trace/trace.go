package trace

import (
	"encoding/json"
	"strings"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	toolx "github.com/tanpawarit/parcel-scout/agent/tool"
)

// Build rebuilds the execution trace of one turn from its message log.
// There is one top-level entry per tool result, in log order. Results are
// paired with their calls by call id. A specialist result whose payload has
// the finalOutput/intermediateSteps shape expands into child entries, and any
// child output with the same shape expands again.
func Build(messages []contractx.Message) []contractx.TraceEntry {
	calls := map[string]contractx.ToolCall{}
	out := []contractx.TraceEntry{}

	for _, msg := range messages {
		switch msg.Kind {
		case contractx.MessageAssistant:
			for _, call := range msg.ToolCalls {
				calls[call.ID] = call
			}
		case contractx.MessageToolResult:
			name := msg.ToolName
			var input any
			if call, ok := calls[msg.CallID]; ok {
				name = call.Tool
				input = call.Args
			}
			out = append(out, topLevelEntry(name, input, msg.Content))
		}
	}
	return out
}

func topLevelEntry(name string, input any, payload string) contractx.TraceEntry {
	if !toolx.IsSpecialist(name) {
		return contractx.TraceEntry{
			Kind:   contractx.TraceTool,
			Name:   name,
			Input:  input,
			Output: toolx.DecodePayload(payload),
		}
	}

	entry := contractx.TraceEntry{
		Kind:   contractx.TraceSubagent,
		Name:   name,
		Input:  input,
		Output: payload,
	}
	if run, ok := asSubagentRun(payload); ok {
		entry.Output = run.finalOutput
		entry.Children = children(run.steps)
	}
	return entry
}

func children(steps []map[string]any) []contractx.TraceEntry {
	if len(steps) == 0 {
		return nil
	}
	out := make([]contractx.TraceEntry, 0, len(steps))
	for _, step := range steps {
		name, _ := step["tool"].(string)
		entry := contractx.TraceEntry{
			Kind:   contractx.TraceTool,
			Name:   toolx.FriendlyName(name),
			Input:  step["input"],
			Output: step["output"],
		}
		if run, ok := asSubagentRun(step["output"]); ok {
			entry.Kind = contractx.TraceSubagent
			entry.Output = run.finalOutput
			entry.Children = children(run.steps)
		}
		out = append(out, entry)
	}
	return out
}

type subagentRun struct {
	finalOutput string
	steps       []map[string]any
}

// asSubagentRun accepts either decoded JSON or JSON text.
func asSubagentRun(v any) (subagentRun, bool) {
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if !strings.HasPrefix(trimmed, "{") {
			return subagentRun{}, false
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return subagentRun{}, false
		}
		v = decoded
	}

	m, ok := v.(map[string]any)
	if !ok {
		return subagentRun{}, false
	}
	final, ok := m["finalOutput"].(string)
	if !ok {
		return subagentRun{}, false
	}
	rawSteps, ok := m["intermediateSteps"].([]any)
	if !ok {
		return subagentRun{}, false
	}

	steps := make([]map[string]any, 0, len(rawSteps))
	for _, raw := range rawSteps {
		step, ok := raw.(map[string]any)
		if !ok {
			return subagentRun{}, false
		}
		steps = append(steps, step)
	}
	return subagentRun{finalOutput: final, steps: steps}, true
}
