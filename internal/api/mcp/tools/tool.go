package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// call carries one tool invocation to its run function.
type call struct {
	actor   portal.Actor
	args    json.RawMessage
	session *portal.Session
}

func (c *call) bind(v any) error {
	if len(c.args) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.args, v); err != nil {
		return commonErrors.NewInvalidInputError("error parsing arguments", err)
	}
	return nil
}

// Tool is an MCP tool backed by a portal operation
type Tool struct {
	name        string
	description string
	schema      mcp.JSONSchema
	// verb completes "... successfully" in the result text
	verb        string
	// staffOnly tools are not listed for client callers
	staffOnly   bool
	readOnly    bool
	destructive bool
	idempotent  bool
	pool        *SessionPool
	logger      *slog.Logger
	run         func(ctx context.Context, c *call) (any, error)
}

func (t *Tool) GetName() string               { return t.name }
func (t *Tool) GetDescription() string        { return t.description }
func (t *Tool) GetInputSchema() mcp.JSONSchema { return t.schema }

// AvailableTo hides staff tools from clients. The operations check the role again when called.
func (t *Tool) AvailableTo(actor portal.Actor) bool {
	return !t.staffOnly || actor.IsStaff()
}

func (t *Tool) GetAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:    t.readOnly,
		DestructiveHint: t.destructive,
		IdempotentHint:  t.readOnly || t.idempotent,
	}
}

func (t *Tool) Execute(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	actor, ok := portal.ActorFromContext(ctx)
	if !ok {
		return errorResult(commonErrors.NewAuthenticationError("no verified caller")), nil
	}
	c := &call{actor: actor, args: arguments}

	var release func(context.Context) error
	if t.pool != nil {
		c.session, release = t.pool.Acquire(actor)
	}

	out, err := t.run(ctx, c)
	if release != nil {
		if ferr := release(ctx); ferr != nil && err == nil {
			err = ferr
		}
		// the view was computed before the write; report the saved state
		if _, isView := out.(*portal.View); isView && err == nil {
			out = c.session.View()
		}
	}
	if err != nil {
		t.logger.WarnContext(ctx, "tool failed", "tool", t.name, "subject", actor.Subject, "error", err)
		return errorResult(err), nil
	}

	responseData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.ToolResultContent{{
				Type: "text",
				Text: fmt.Sprintf("%s succeeded but error formatting response: %v", t.name, err),
			}},
			IsError: true,
		}, nil
	}

	result := &mcp.CallToolResult{
		Content: []mcp.ToolResultContent{{
			Type: "text",
			Text: fmt.Sprintf("%s %s successfully:\n%s", t.name, t.verb, string(responseData)),
		}},
	}
	// structured content must be an object; lists are only sent as text
	if bytes.HasPrefix(responseData, []byte("{")) {
		result.StructuredContent = responseData
	}
	return result, nil
}

type errorPayload struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// errorResult reports an operation failure in tool result format.
// Application errors keep their code and details so callers can react to them.
func errorResult(err error) *mcp.CallToolResult {
	payload := errorPayload{Code: commonErrors.CodeInternal, Message: err.Error()}
	var appErr commonErrors.AppError
	if errors.As(err, &appErr) {
		payload = errorPayload{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	data, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.ToolResultContent{{
			Type:     "text",
			Text:     fmt.Sprintf("Error: %s", string(data)),
			MimeType: "application/json",
		}},
		StructuredContent: data,
		IsError:           true,
	}
}

// Register adds every portal tool to the registry
func Register(registry *mcp.HandlerRegistry, svc *portal.Service, pool *SessionPool, logger *slog.Logger) {
	for _, t := range append(scopeTools(pool), dashboardTools(svc)...) {
		t.logger = logger
		registry.RegisterTool(t)
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string, min, max int) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description, "minimum": min, "maximum": max}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}
