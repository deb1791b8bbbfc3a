package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// SpecialistRunner runs one domain sub-pipeline on a property description.
type SpecialistRunner interface {
	Run(ctx context.Context, propertyDetails string) (contractx.SpecialistOutput, error)
}

// SpecialistTool dispatches to a specialist and returns its
// finalOutput/intermediateSteps document as JSON text.
type SpecialistTool struct {
	info   *schema.ToolInfo
	label  string
	runner SpecialistRunner
}

var _ contractx.Tool = (*SpecialistTool)(nil)

func NewSpecialistTool(info *schema.ToolInfo, label string, runner SpecialistRunner) *SpecialistTool {
	return &SpecialistTool{info: info, label: label, runner: runner}
}

func (t *SpecialistTool) Info() *schema.ToolInfo {
	return t.info
}

func (t *SpecialistTool) Execute(ctx context.Context, args map[string]any) string {
	return run(ctx, t.info.Name, args, func(ctx context.Context) (string, bool) {
		details, err := propertyDetails(args)
		if err != nil {
			return fmt.Sprintf("Error invoking %s agent: %v", t.label, err), false
		}

		out, err := t.runner.Run(ctx, details)
		if err != nil {
			return fmt.Sprintf("Error invoking %s agent: %v", t.label, err), false
		}
		if out.IntermediateSteps == nil {
			out.IntermediateSteps = []contractx.IntermediateStep{}
		}
		out.FinalOutput = fmt.Sprintf("%s Agent Assessment: %s", t.label, out.FinalOutput)

		body, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("Error invoking %s agent: encode result: %v", t.label, err), false
		}
		return string(body), true
	})
}

// propertyDetails accepts the documented string form and, leniently, an
// object the controller passed without encoding.
func propertyDetails(args map[string]any) (string, error) {
	raw, ok := args["propertyDetails"]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing required parameter 'propertyDetails'")
	}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("parameter 'propertyDetails' is empty")
		}
		return v, nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("invalid parameter 'propertyDetails': %v", err)
		}
		return string(body), nil
	}
}
