package reasoner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
	boundWith [][]*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boundWith = append(f.boundWith, tools)
	return f, nil
}

func searchTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: "webSearch",
		Desc: "Search the web.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Required: true},
		}),
	}
}

func TestChatDeciderMapsToolCalls(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "call_1", Function: schema.FunctionCall{Name: "webSearch", Arguments: `{"query":"land prices"}`}},
					{Function: schema.FunctionCall{Name: "webSearch", Arguments: `{"query":"flood risk"}`}},
				},
			},
		},
	}

	decider, err := NewChatDecider(contractx.AgentTypeFinance, fake, "finance prompt")
	if err != nil {
		t.Fatalf("NewChatDecider() error = %v", err)
	}

	msg, err := decider.Decide(context.Background(), contractx.DecisionRequest{
		Agent:   contractx.AgentTypeFinance,
		History: []contractx.Message{contractx.NewHumanMessage("evaluate")},
		Tools:   []*schema.ToolInfo{searchTool()},
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !msg.HasToolCalls() || len(msg.ToolCalls) != 2 {
		t.Fatalf("unexpected tool calls: %#v", msg.ToolCalls)
	}
	if msg.ToolCalls[0].ID != "call_1" || msg.ToolCalls[0].Args["query"] != "land prices" {
		t.Fatalf("unexpected first call: %#v", msg.ToolCalls[0])
	}
	if !strings.HasPrefix(msg.ToolCalls[1].ID, "call_") || msg.ToolCalls[1].ID == "call_1" {
		t.Fatalf("expected generated call id, got %q", msg.ToolCalls[1].ID)
	}
	if len(fake.boundWith) != 1 {
		t.Fatalf("expected tools bound once, got %d", len(fake.boundWith))
	}
}

func TestChatDeciderReplaysHistory(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Role: schema.Assistant, Content: "done"},
			{Role: schema.Assistant, Content: "again"},
		},
	}
	decider, err := NewChatDecider(contractx.AgentTypeOrchestrator, fake, "system prompt")
	if err != nil {
		t.Fatalf("NewChatDecider() error = %v", err)
	}

	history := []contractx.Message{
		contractx.NewHumanMessage("hello"),
		contractx.NewAssistantMessage("", contractx.ToolCall{ID: "c1", Tool: "webSearch", Args: map[string]any{"query": "x"}}),
		contractx.NewToolResultMessage("c1", "webSearch", "result"),
	}
	req := contractx.DecisionRequest{History: history, Tools: []*schema.ToolInfo{searchTool()}}

	msg, err := decider.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if msg.Kind != contractx.MessageAssistant || msg.Content != "done" || msg.HasToolCalls() {
		t.Fatalf("unexpected answer: %#v", msg)
	}
	if _, err := decider.Decide(context.Background(), req); err != nil {
		t.Fatalf("second Decide() error = %v", err)
	}
	if len(fake.boundWith) != 1 {
		t.Fatalf("decision graph should be reused, tools bound %d times", len(fake.boundWith))
	}

	input := fake.inputs[0]
	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.Tool}
	if len(input) != len(wantRoles) {
		t.Fatalf("unexpected model input length: %d", len(input))
	}
	for i, role := range wantRoles {
		if input[i].Role != role {
			t.Fatalf("input[%d].Role = %s, want %s", i, input[i].Role, role)
		}
	}
	if input[2].ToolCalls[0].Function.Arguments != `{"query":"x"}` {
		t.Fatalf("unexpected replayed args: %s", input[2].ToolCalls[0].Function.Arguments)
	}
	if input[3].ToolCallID != "c1" {
		t.Fatalf("unexpected tool call id: %s", input[3].ToolCallID)
	}
}

func TestChatDeciderRejectsEmptyAnswer(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{{Role: schema.Assistant, Content: "  "}}}
	decider, err := NewChatDecider(contractx.AgentTypeEco, fake, "eco prompt")
	if err != nil {
		t.Fatalf("NewChatDecider() error = %v", err)
	}

	_, err = decider.Decide(context.Background(), contractx.DecisionRequest{
		History: []contractx.Message{contractx.NewHumanMessage("x")},
	})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Decide() error = %v, want ErrModelInvoke", err)
	}
}

func TestNewChatDeciderRequiresPrompt(t *testing.T) {
	t.Parallel()

	_, err := NewChatDecider(contractx.AgentTypeEco, &fakeToolCallingModel{}, " ")
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("NewChatDecider() error = %v, want ErrPromptMissing", err)
	}
}

func TestJudgeSummarizeFencedJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Content: "```json\n{\"overallScore\":83,\"recommendation\":\"RECOMMENDED\",\"executiveSummary\":\"Solid plot.\"}\n```"},
		},
	}
	judge, err := NewJudge(context.Background(), fake, "aggregator prompt")
	if err != nil {
		t.Fatalf("NewJudge() error = %v", err)
	}

	out, err := judge.Summarize(context.Background(), contractx.SummaryRequest{OverallScore: 83, Recommendation: contractx.Recommended})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if out.OverallScore != 83 || out.Recommendation != contractx.Recommended || out.ExecutiveSummary != "Solid plot." {
		t.Fatalf("unexpected verdict: %#v", out)
	}
}

func TestJudgeRejectsUnknownTier(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Content: `{"overallScore":83,"recommendation":"MAYBE","executiveSummary":"Hmm."}`},
		},
	}
	judge, err := NewJudge(context.Background(), fake, "aggregator prompt")
	if err != nil {
		t.Fatalf("NewJudge() error = %v", err)
	}

	_, err = judge.Summarize(context.Background(), contractx.SummaryRequest{})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("Summarize() error = %v, want ErrSchemaViolation", err)
	}
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	text := `Here is my assessment:
{"score":72,"summary":"Good zoning.","details":{"zoningCompliance":"agricultural","protectedAreaStatus":"none","potentialRestrictions":[]}}`

	got, err := ParseVerdict[contractx.LegalDetails](context.Background(), text)
	if err != nil {
		t.Fatalf("ParseVerdict() error = %v", err)
	}
	if got.Score != 72 || got.Details.ZoningCompliance != "agricultural" {
		t.Fatalf("unexpected verdict: %#v", got)
	}
}

func TestParseVerdictRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":      "I could not evaluate the plot.",
		"score too big": `{"score":140,"summary":"x","details":{"zoningCompliance":"a","protectedAreaStatus":"b"}}`,
		"no summary":    `{"score":40,"summary":"","details":{"zoningCompliance":"a","protectedAreaStatus":"b"}}`,
		"no details":    `{"score":40,"summary":"x"}`,
	}
	for name, text := range cases {
		_, err := ParseVerdict[contractx.LegalDetails](context.Background(), text)
		if !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("%s: ParseVerdict() error = %v, want ErrSchemaViolation", name, err)
		}
	}
}
