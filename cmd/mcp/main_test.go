package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/checklist-portal/backend/internal/api/mcp/tools"
	envconfig "github.com/hirosato/checklist-portal/backend/internal/common/config"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/sqlite"
)

func newHandler(t *testing.T) *MCPRequestHandler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	repo, err := sqlite.NewClientRepository(filepath.Join(t.TempDir(), "portal.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	svc := portal.NewService(repo, logger, time.Second)
	return NewMCPRequestHandler(newMCPService(svc, tools.NewRequestSessions(svc), logger), logger, &envconfig.Config{Environment: "dev"})
}

func rpc(method string, params string, authorizer map[string]interface{}) events.APIGatewayProxyRequest {
	request := events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/",
		Body:       `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":` + params + `}`,
	}
	request.RequestContext.Authorizer = authorizer
	return request
}

func TestMCPRequestHandler(t *testing.T) {
	staff := map[string]interface{}{"role": "staff", "sub": "u1"}

	t.Run("tool call as staff", func(t *testing.T) {
		// Setup
		h := newHandler(t)

		// Act
		resp, err := h.HandleRequest(context.Background(), rpc("tools/call", `{"name":"create-client","arguments":{"name":"Shop A"}}`, staff))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Result mcp.CallToolResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		assert.False(t, body.Result.IsError)
		assert.True(t, strings.HasPrefix(body.Result.Content[0].Text, "create-client created successfully"))
	})

	t.Run("missing authorizer context", func(t *testing.T) {
		h := newHandler(t)

		resp, err := h.HandleRequest(context.Background(), rpc("tools/list", `{}`, nil))

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("preflight and wrong method", func(t *testing.T) {
		h := newHandler(t)

		resp, _ := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "OPTIONS", Path: "/"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "POST", resp.Headers["Allow"])

		resp, _ = h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/other"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("parse error", func(t *testing.T) {
		h := newHandler(t)
		request := rpc("ping", `{}`, staff)
		request.Body = "{"

		resp, err := h.HandleRequest(context.Background(), request)

		require.NoError(t, err)
		var body mcp.JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		require.NotNil(t, body.Error)
		assert.Equal(t, mcp.ParseError, body.Error.Code)
	})
}
