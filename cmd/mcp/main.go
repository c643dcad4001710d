package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hirosato/checklist-portal/backend/internal/api/mcp/resources"
	"github.com/hirosato/checklist-portal/backend/internal/api/mcp/tools"
	"github.com/hirosato/checklist-portal/backend/internal/api/middleware"
	"github.com/hirosato/checklist-portal/backend/internal/api/response"
	envconfig "github.com/hirosato/checklist-portal/backend/internal/common/config"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/store"
)

type MCPRequestHandler struct {
	mcpService *mcp.Service
	logger     *slog.Logger
	config     *envconfig.Config
	chain      middleware.APIGatewayHandler
}

// NewMCPRequestHandler creates a new MCP request handler
func NewMCPRequestHandler(
	mcpService *mcp.Service,
	logger *slog.Logger,
	config *envconfig.Config,
) *MCPRequestHandler {
	h := &MCPRequestHandler{
		mcpService: mcpService,
		logger:     logger,
		config:     config,
	}
	h.chain = middleware.Chain(h.serveJSONRPC,
		middleware.NewRecoveryMiddleware(),
		middleware.NewLoggingMiddleware(!config.IsProd()),
		middleware.NewActorMiddleware(),
	)
	return h
}

func (h *MCPRequestHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Handle CORS preflight
	if request.HTTPMethod == "OPTIONS" {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    h.getCORSHeaders(),
		}, nil
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	h.logger.Debug("mcp - Memory Status", "MB", m.Alloc/1024/1024)

	if request.Path == "/" && request.HTTPMethod != "POST" {
		return h.jsonRPCMethodNotAllowedError(), nil
	}

	// MCP servers handle JSON-RPC requests on the root path
	if request.Path != "/" {
		return response.NotFound("Endpoint not found"), nil
	}

	return h.chain(ctx, h.logger, request)
}

func (h *MCPRequestHandler) serveJSONRPC(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var jsonRPCRequest mcp.JSONRPCRequest
	if err := json.Unmarshal([]byte(request.Body), &jsonRPCRequest); err != nil {
		logger.Error("Failed to parse JSON-RPC request", "error", err)
		return h.jsonRPCErrorResponse(mcp.ParseError, "Parse error", err.Error()), nil
	}

	httpResponse := h.mcpService.HandleRequest(ctx, jsonRPCRequest)

	responseBody, err := json.Marshal(httpResponse.JSONRPCResponse)
	if err != nil {
		logger.Error("Failed to marshal JSON-RPC response", "error", err)
		return h.jsonRPCErrorResponse(mcp.InternalError, "Internal error", "Failed to marshal response"), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: httpResponse.StatusCode,
		Headers:    h.getCORSHeaders(),
		Body:       string(responseBody),
	}, nil
}

func (h *MCPRequestHandler) getCORSHeaders() map[string]string {
	headers := make(map[string]string)
	headers["Content-Type"] = "application/json"
	headers["Access-Control-Allow-Origin"] = "*"
	headers["Access-Control-Allow-Methods"] = "POST, OPTIONS"
	headers["Access-Control-Allow-Headers"] = "Content-Type, Authorization"
	return headers
}

func (h *MCPRequestHandler) jsonRPCErrorResponse(code int, message string, data string) events.APIGatewayProxyResponse {
	errorResponse := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &mcp.JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}

	body, _ := json.Marshal(errorResponse)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK, // JSON-RPC errors still return 200
		Headers:    h.getCORSHeaders(),
		Body:       string(body),
	}
}

func (h *MCPRequestHandler) jsonRPCMethodNotAllowedError() events.APIGatewayProxyResponse {
	errorResponse := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &mcp.JSONRPCError{
			Code:    mcp.MethodNotAllowed,
			Message: "Method Not Allowed",
		},
	}

	body, _ := json.Marshal(errorResponse)
	headers := h.getCORSHeaders()
	headers["Allow"] = "POST"
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Headers:    headers,
		Body:       string(body),
	}
}

// newMCPService wires the portal tools and catalog resources
func newMCPService(svc *portal.Service, pool *tools.SessionPool, logger *slog.Logger) *mcp.Service {
	registry := mcp.NewHandlerRegistry()
	tools.Register(registry, svc, pool, logger.With("component", "tools"))
	resources.Register(registry)
	return mcp.NewService(logger, registry)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config, err := envconfig.LoadFromEnv()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(context.Background(), config, logger)
	if err != nil {
		logger.Error("Failed to open client store", "backend", config.StoreBackend, "error", err)
		os.Exit(1)
	}

	svc := portal.NewService(st.Repository, logger.With("component", "portal"), config.AutosaveDelay)
	handler := NewMCPRequestHandler(newMCPService(svc, tools.NewRequestSessions(svc), logger), logger, config)

	lambda.Start(handler.HandleRequest)
}
