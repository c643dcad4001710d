package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

const instructions = "Use this MCP server to fill in and review the monthly bookkeeping checklist of a client. " +
	"Open a checklist with load-scope, edit tasks and figures, run reconcile to see sales variance, and submit-scope when done. " +
	"Scope tools accept clientId, year and term on every call; without them they work on the checklist opened last. " +
	"The task templates are readable as portal://catalog/termN resources."

// HTTPResponse pairs a JSON-RPC response with the HTTP status the Lambda answers with
type HTTPResponse struct {
	JSONRPCResponse JSONRPCResponse
	StatusCode      int
}

func success(id json.RawMessage, result interface{}) HTTPResponse {
	return HTTPResponse{
		JSONRPCResponse: JSONRPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result},
		StatusCode:      http.StatusOK,
	}
}

// failure builds a JSON-RPC error. Protocol errors still travel with HTTP 200.
func failure(id json.RawMessage, code int, message string, data interface{}) HTTPResponse {
	return HTTPResponse{
		JSONRPCResponse: JSONRPCResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Error:   &JSONRPCError{Code: code, Message: message, Data: data},
		},
		StatusCode: http.StatusOK,
	}
}

type methodHandler func(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse

// Service answers MCP requests from the tools and resources in its registry.
// The caller is read from the context; tools/list only shows what that caller may use.
type Service struct {
	logger     *slog.Logger
	serverInfo ServerInfo
	registry   *HandlerRegistry
	methods    map[string]methodHandler
}

func NewService(logger *slog.Logger, registry *HandlerRegistry) *Service {
	s := &Service{
		logger: logger,
		serverInfo: ServerInfo{
			Name:    "checklist-portal-mcp",
			Title:   "Monthly bookkeeping checklist portal",
			Version: "1.0.0",
		},
		registry: registry,
	}
	s.methods = map[string]methodHandler{
		"initialize":                s.handleInitialize,
		"notifications/initialized": s.handleInitializedNotification,
		"ping":                      s.handlePing,
		"resources/list":            s.handleListResources,
		"resources/read":            s.handleReadResource,
		"tools/list":                s.handleListTools,
		"tools/call":                s.handleCallTool,
	}
	return s
}

// HandleRequest dispatches one JSON-RPC request
func (s *Service) HandleRequest(ctx context.Context, request JSONRPCRequest) HTTPResponse {
	actor, _ := portal.ActorFromContext(ctx)
	s.logger.InfoContext(ctx, "MCP request received", "method", request.Method, "subject", actor.Subject)

	if request.JSONRPC != jsonRPCVersion {
		return failure(request.ID, InvalidRequest, "jsonrpc must be \"2.0\"", nil)
	}
	handle, ok := s.methods[request.Method]
	if !ok {
		return failure(request.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", request.Method), nil)
	}
	return handle(ctx, actor, request)
}

func (s *Service) handleInitialize(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return failure(request.ID, InvalidParams, "Invalid initialize params", err.Error())
		}
	}

	return success(request.ID, InitializeResult{
		ProtocolVersion: negotiateVersion(params.ProtocolVersion),
		Capabilities: ServerCapability{
			Resources: ResourcesCapability{},
			Tools:     ToolsCapability{},
		},
		ServerInfo:   s.serverInfo,
		Instructions: instructions,
	})
}

func (s *Service) handlePing(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	return success(request.ID, map[string]any{})
}

func (s *Service) handleInitializedNotification(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	resp := success(request.ID, map[string]any{})
	resp.StatusCode = http.StatusAccepted
	return resp
}

func (s *Service) handleListResources(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	return success(request.ID, ListResourcesResult{Resources: s.registry.ListResources()})
}

func (s *Service) handleReadResource(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	var params ReadResourceParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return failure(request.ID, InvalidParams, "Invalid read resource params", err.Error())
	}

	handler, ok := s.registry.GetResource(params.URI)
	if !ok {
		return failure(request.ID, ResourceNotFound, "Resource not found", map[string]string{"uri": params.URI})
	}

	result, err := handler.Read(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read resource", "uri", params.URI, "error", err)
		return failure(request.ID, InternalError, "Failed to read resource", err.Error())
	}
	return success(request.ID, result)
}

func (s *Service) handleListTools(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	return success(request.ID, ListToolsResult{Tools: s.registry.ListTools(actor)})
}

// handleCallTool runs a tool. Portal failures come back as tool results with isError set,
// so only an unknown tool or malformed params are protocol errors.
func (s *Service) handleCallTool(ctx context.Context, actor portal.Actor, request JSONRPCRequest) HTTPResponse {
	var params CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return failure(request.ID, InvalidParams, "Invalid call tool params", err.Error())
	}

	handler, ok := s.registry.GetTool(params.Name)
	if !ok {
		return failure(request.ID, InvalidParams, fmt.Sprintf("Tool not found: %s", params.Name), nil)
	}

	result, err := handler.Execute(ctx, params.Arguments)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to execute tool", "tool", params.Name, "subject", actor.Subject, "error", err)
		result = &CallToolResult{
			Content: []ToolResultContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}
	}
	return success(request.ID, result)
}
