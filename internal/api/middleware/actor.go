package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/checklist-portal/backend/internal/api/response"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// Keys the authorizer puts in its policy context
const (
	AuthorizerRole     = "role"
	AuthorizerClientID = "clientId"
	AuthorizerSubject  = "sub"
)

// ActorMiddleware turns the authorizer context into the portal actor of the request
type ActorMiddleware struct{}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware() ActorMiddleware {
	return ActorMiddleware{}
}

// Handle handles the actor middleware
func (m ActorMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		actor, ok := ActorFromAuthorizer(request.RequestContext.Authorizer)
		if !ok {
			return response.AuthenticationError("caller identity missing", request.RequestContext.RequestID), nil
		}
		logger = logger.With("subject", actor.Subject, "role", actor.Role)
		return next(portal.ContextWithActor(ctx, actor), logger, request)
	}
}

// ActorFromAuthorizer reads the actor the authorizer verified
func ActorFromAuthorizer(authorizer map[string]interface{}) (portal.Actor, bool) {
	actor := portal.Actor{
		Subject:  stringValue(authorizer[AuthorizerSubject]),
		Role:     portal.Role(stringValue(authorizer[AuthorizerRole])),
		ClientID: stringValue(authorizer[AuthorizerClientID]),
	}
	switch actor.Role {
	case portal.RoleStaff:
		actor.ClientID = ""
		return actor, true
	case portal.RoleClient:
		return actor, actor.ClientID != ""
	default:
		return portal.Actor{}, false
	}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
