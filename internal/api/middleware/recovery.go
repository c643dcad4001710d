package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"
	"github.com/hirosato/checklist-portal/backend/internal/api/response"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
)

// RecoveryMiddleware is a middleware for recovering from panics
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle handles the recovery middleware
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
		requestID := request.RequestContext.RequestID
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				resp = response.InternalError("An unexpected error occurred", fmt.Errorf("panic: %v", r), requestID)
				err = nil
			}
		}()

		resp, err = next(ctx, logger, request)
		if err != nil {
			// Convert the error to an AppError if it's not already
			var appErr commonErrors.AppError
			if !errors.As(err, &appErr) {
				appErr = commonErrors.NewInternalError("An unexpected error occurred", err)
			}
			logger.ErrorContext(ctx, "request failed", "code", appErr.Code, "error", err)
			return response.Error(appErr, requestID), nil
		}
		return resp, nil
	}
}
