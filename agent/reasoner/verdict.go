package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// ExtractJSON strips markdown fences and surrounding prose from a model answer
// and returns the outermost JSON object, or the trimmed text when none is found.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// ParseVerdict decodes and validates a specialist's final answer.
func ParseVerdict[D any](ctx context.Context, text string) (contractx.DomainEvaluation[D], error) {
	body := ExtractJSON(text)
	if body == "" {
		return contractx.DomainEvaluation[D]{}, fmt.Errorf("%w: verdict is empty", contractx.ErrSchemaViolation)
	}

	parser := schema.NewMessageJSONParser[contractx.DomainEvaluation[D]](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})
	out, err := parser.Parse(ctx, &schema.Message{Role: schema.Assistant, Content: body})
	if err != nil {
		return contractx.DomainEvaluation[D]{}, fmt.Errorf("%w: decode verdict: %v", contractx.ErrSchemaViolation, err)
	}

	out.Summary = strings.TrimSpace(out.Summary)
	if err := contractx.Validate(out); err != nil {
		return contractx.DomainEvaluation[D]{}, err
	}
	return out, nil
}
