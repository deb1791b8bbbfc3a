package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// Invoker calls one named operation on a remote service.
type Invoker interface {
	Invoke(ctx context.Context, operation string, params map[string]any) (json.RawMessage, error)
}

// RPCTool exposes one remote operation. Arguments are forwarded verbatim so
// parameter validation stays with the service.
type RPCTool struct {
	info      *schema.ToolInfo
	client    Invoker
	operation string
	label     string
}

var _ contractx.Tool = (*RPCTool)(nil)

func NewRPCTool(info *schema.ToolInfo, client Invoker, operation, label string) *RPCTool {
	return &RPCTool{info: info, client: client, operation: operation, label: label}
}

func (t *RPCTool) Info() *schema.ToolInfo {
	return t.info
}

func (t *RPCTool) Execute(ctx context.Context, args map[string]any) string {
	return run(ctx, t.info.Name, args, func(ctx context.Context) (string, bool) {
		data, err := t.client.Invoke(ctx, t.operation, args)
		if err != nil {
			return fmt.Sprintf("Error fetching %s: %v", t.label, err), false
		}
		out, err := normalize(data)
		if err != nil {
			return fmt.Sprintf("Error fetching %s: %v", t.label, err), false
		}
		return out, true
	})
}
