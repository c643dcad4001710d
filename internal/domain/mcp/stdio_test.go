package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ServeStdio(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("answers requests and skips notifications", func(t *testing.T) {
		// Setup
		registry := NewHandlerRegistry()
		registry.RegisterTool(&fakeTool{name: "b_tool"})
		registry.RegisterTool(&fakeTool{name: "a_tool"})
		service := NewService(logger, registry)
		in := strings.Join([]string{
			`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			``,
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		}, "\n")
		var out bytes.Buffer

		// Act
		err := service.ServeStdio(context.Background(), strings.NewReader(in), &out)

		// Assert
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)

		var ping JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &ping))
		assert.JSONEq(t, `1`, string(ping.ID))
		assert.Nil(t, ping.Error)

		var list struct {
			ID     json.RawMessage `json:"id"`
			Result ListToolsResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &list))
		require.Len(t, list.Result.Tools, 2)
		assert.Equal(t, "a_tool", list.Result.Tools[0].Name)
		assert.Equal(t, "b_tool", list.Result.Tools[1].Name)
	})

	t.Run("malformed line gets a parse error", func(t *testing.T) {
		// Setup
		service := NewService(logger, NewHandlerRegistry())
		var out bytes.Buffer

		// Act
		err := service.ServeStdio(context.Background(), strings.NewReader("{not json\n"), &out)

		// Assert
		require.NoError(t, err)
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ParseError, resp.Error.Code)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		service := NewService(logger, NewHandlerRegistry())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := service.ServeStdio(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &bytes.Buffer{})

		assert.ErrorIs(t, err, context.Canceled)
	})
}
