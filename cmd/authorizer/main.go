package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/hirosato/checklist-portal/backend/internal/api/middleware"
	"github.com/hirosato/checklist-portal/backend/internal/common/config"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/identity"
)

// TokenVerifier turns a bearer header into a portal actor
type TokenVerifier interface {
	Verify(ctx context.Context, bearer string) (portal.Actor, error)
}

// Authorizer is the API Gateway request authorizer for the MCP endpoint
type Authorizer struct {
	verifier TokenVerifier
	log      *zap.Logger
	debug    bool
}

// Handle is the Lambda function handler for API Gateway REST API Request Authorizer
func (a *Authorizer) Handle(ctx context.Context, request events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	authHeader := request.Headers["Authorization"]
	if authHeader == "" {
		authHeader = request.Headers["authorization"] // Case-insensitive fallback
	}
	if authHeader == "" {
		a.log.Info("Missing Authorization header", zap.String("methodArn", request.MethodArn))
		return generatePolicy("user", "Deny", request.MethodArn, nil), nil
	}

	if a.debug {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		a.log.Debug("authorizer - Memory Status", zap.Uint64("MB", m.Alloc/1024/1024))
	}

	actor, err := a.verifier.Verify(ctx, authHeader)
	if err != nil {
		a.log.Warn("Token validation failed", zap.Error(err))
		return generatePolicy("user", "Deny", request.MethodArn, nil), nil
	}

	authContext := map[string]interface{}{
		middleware.AuthorizerRole:     string(actor.Role),
		middleware.AuthorizerClientID: actor.ClientID,
		middleware.AuthorizerSubject:  actor.Subject,
	}
	// arn:aws:execute-api:{regionId}:{accountId}:{apiId}/{stage}/{httpVerb}/[{resource}/[{child-resources}]]
	arn := fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/%s",
		"*", // Region
		request.RequestContext.AccountID,
		request.RequestContext.APIID,
		request.RequestContext.Stage,
		"*", // HTTP Method
	)

	a.log.Info("Token accepted", zap.String("sub", actor.Subject), zap.String("role", string(actor.Role)))
	return generatePolicy(actor.Subject, "Allow", arn, authContext), nil
}

// generatePolicy generates an IAM policy for the authorizer response
func generatePolicy(principalID, effect, resource string, context map[string]interface{}) events.APIGatewayCustomAuthorizerResponse {
	authResponse := events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principalID,
	}

	if effect != "" && resource != "" {
		authResponse.PolicyDocument = events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{"execute-api:Invoke"},
					Effect:   effect,
					Resource: []string{resource},
				},
			},
		}
	}

	if context != nil {
		authResponse.Context = context
	}

	return authResponse
}

func newAuthorizer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Authorizer, error) {
	var opts []identity.Option
	if cfg.ServiceTokenSecretID != "" {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		cache, err := identity.NewSecretCache(secretsmanager.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		opts = append(opts, identity.WithServiceSecret(cache, cfg.ServiceTokenSecretID))
	}

	verifier := identity.NewVerifier(identity.Config{
		Region:     cfg.AWSRegion,
		UserPoolID: cfg.UserPoolID,
		ClientID:   cfg.UserPoolClientID,
		StaffGroup: cfg.StaffGroup,
	}, slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "verifier"), opts...)

	return &Authorizer{verifier: verifier, log: log, debug: !cfg.IsProd()}, nil
}

// main is the entry point for the Lambda function
func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.LoadFromEnv()
	if err == nil {
		err = cfg.ValidateAuthorizer()
	}
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	authorizer, err := newAuthorizer(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize authorizer", zap.Error(err))
	}

	lambda.Start(authorizer.Handle)
}
