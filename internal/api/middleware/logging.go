package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

var sensitiveHeaders = []string{"Authorization", "authorization", "X-Api-Key", "x-api-key", "Cookie", "cookie"}

// LoggingMiddleware is a middleware for logging requests and responses
type LoggingMiddleware struct {
	// logBodies adds request and response bodies to the log; dev only
	logBodies bool
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logBodies bool) LoggingMiddleware {
	return LoggingMiddleware{logBodies: logBodies}
}

// Handle handles the logging middleware
func (m LoggingMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		startTime := time.Now()
		logger = logger.With("requestId", request.RequestContext.RequestID)

		attrs := []any{
			"method", request.HTTPMethod,
			"path", request.Path,
			"headers", maskSensitiveHeaders(request.Headers),
		}
		if m.logBodies && request.Body != "" {
			attrs = append(attrs, "body", request.Body)
		}
		logger.InfoContext(ctx, "REQUEST", attrs...)

		response, err := next(ctx, logger, request)

		attrs = []any{"status", response.StatusCode, "duration", time.Since(startTime)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		if m.logBodies && response.Body != "" {
			attrs = append(attrs, "body", response.Body)
		}
		logger.InfoContext(ctx, "RESPONSE", attrs...)

		return response, err
	}
}

// maskSensitiveHeaders returns a copy of headers with credentials replaced
func maskSensitiveHeaders(headers map[string]string) map[string]string {
	maskedHeaders := make(map[string]string, len(headers))
	for k, v := range headers {
		maskedHeaders[k] = v
	}
	for _, header := range sensitiveHeaders {
		if _, ok := maskedHeaders[header]; ok {
			maskedHeaders[header] = "***"
		}
	}
	return maskedHeaders
}
