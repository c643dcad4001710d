package main

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

type stubVerifier struct {
	actor portal.Actor
	err   error
	seen  string
}

func (s *stubVerifier) Verify(ctx context.Context, bearer string) (portal.Actor, error) {
	s.seen = bearer
	return s.actor, s.err
}

func authRequest(headers map[string]string) events.APIGatewayCustomAuthorizerRequestTypeRequest {
	request := events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn: "arn:aws:execute-api:ap-northeast-1:123:api/prod/POST/",
		Headers:   headers,
	}
	request.RequestContext.AccountID = "123"
	request.RequestContext.APIID = "api"
	request.RequestContext.Stage = "prod"
	return request
}

func TestAuthorizer(t *testing.T) {
	t.Run("client token is allowed with its binding", func(t *testing.T) {
		// Setup
		verifier := &stubVerifier{actor: portal.Actor{Subject: "u1", Role: portal.RoleClient, ClientID: "c1"}}
		a := &Authorizer{verifier: verifier, log: zap.NewNop()}

		// Act
		resp, err := a.Handle(context.Background(), authRequest(map[string]string{"authorization": "Bearer tok"}))

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, "Bearer tok", verifier.seen)
		assert.Equal(t, "u1", resp.PrincipalID)
		assert.Equal(t, "Allow", resp.PolicyDocument.Statement[0].Effect)
		assert.Equal(t, []string{"arn:aws:execute-api:*:123:api/prod/*"}, resp.PolicyDocument.Statement[0].Resource)
		assert.Equal(t, map[string]interface{}{"role": "client", "clientId": "c1", "sub": "u1"}, resp.Context)
	})

	t.Run("rejected token is denied", func(t *testing.T) {
		a := &Authorizer{verifier: &stubVerifier{err: commonErrors.NewAuthenticationError("expired")}, log: zap.NewNop()}

		resp, err := a.Handle(context.Background(), authRequest(map[string]string{"Authorization": "Bearer tok"}))

		assert.NoError(t, err)
		assert.Equal(t, "Deny", resp.PolicyDocument.Statement[0].Effect)
		assert.Nil(t, resp.Context)
	})

	t.Run("missing header is denied without verifying", func(t *testing.T) {
		verifier := &stubVerifier{}
		a := &Authorizer{verifier: verifier, log: zap.NewNop()}

		resp, _ := a.Handle(context.Background(), authRequest(nil))

		assert.Equal(t, "Deny", resp.PolicyDocument.Statement[0].Effect)
		assert.Empty(t, verifier.seen)
	})
}
