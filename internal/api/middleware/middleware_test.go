package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

func ok(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "done"}, nil
}

func errorCode(t *testing.T, resp events.APIGatewayProxyResponse) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body.Error
}

func TestActorMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		authorizer map[string]interface{}
		want       *portal.Actor
	}{
		{
			name:       "staff",
			authorizer: map[string]interface{}{"role": "staff", "sub": "u1", "clientId": ""},
			want:       &portal.Actor{Subject: "u1", Role: portal.RoleStaff},
		},
		{
			name:       "client",
			authorizer: map[string]interface{}{"role": "client", "sub": "u2", "clientId": "c1"},
			want:       &portal.Actor{Subject: "u2", Role: portal.RoleClient, ClientID: "c1"},
		},
		{
			name:       "client without binding",
			authorizer: map[string]interface{}{"role": "client", "sub": "u2"},
		},
		{
			name:       "unknown role",
			authorizer: map[string]interface{}{"role": "admin", "sub": "u3"},
		},
		{
			name: "no authorizer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			var seen *portal.Actor
			next := func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				if a, found := portal.ActorFromContext(ctx); found {
					seen = &a
				}
				return ok(ctx, logger, request)
			}
			request := events.APIGatewayProxyRequest{}
			request.RequestContext.Authorizer = tt.authorizer

			// Act
			resp, err := NewActorMiddleware().Handle(next)(context.Background(), slog.Default(), request)

			// Assert
			require.NoError(t, err)
			if tt.want == nil {
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				assert.Nil(t, seen)
				return
			}
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("panic becomes internal error", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			panic("boom")
		})

		resp, err := h(context.Background(), slog.Default(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, commonErrors.CodeInternal, errorCode(t, resp))
	})

	t.Run("application errors keep their status", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, commonErrors.NewNotFoundError("client not found")
		})

		resp, err := h(context.Background(), slog.Default(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, commonErrors.CodeNotFound, errorCode(t, resp))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		h := NewRecoveryMiddleware().Handle(func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("disk full")
		})

		resp, _ := h(context.Background(), slog.Default(), events.APIGatewayProxyRequest{})

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	// Setup
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	request := events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/",
		Headers:    map[string]string{"Authorization": "Bearer secret-token", "Content-Type": "application/json"},
		Body:       `{"jsonrpc":"2.0"}`,
	}

	// Act
	resp, err := Chain(ok, NewLoggingMiddleware(false))(context.Background(), logger, request)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Body)
	assert.NotContains(t, buf.String(), "secret-token")
	assert.NotContains(t, buf.String(), "jsonrpc")
	assert.Contains(t, buf.String(), "application/json")
	assert.Equal(t, "Bearer secret-token", request.Headers["Authorization"])
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return middlewareFunc(func(next APIGatewayHandler) APIGatewayHandler {
			return func(ctx context.Context, logger *slog.Logger, r events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				order = append(order, name)
				return next(ctx, logger, r)
			}
		})
	}

	_, err := Chain(ok, mark("outer"), mark("inner"))(context.Background(), slog.Default(), events.APIGatewayProxyRequest{})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type middlewareFunc func(APIGatewayHandler) APIGatewayHandler

func (f middlewareFunc) Handle(next APIGatewayHandler) APIGatewayHandler { return f(next) }
