package identity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"

	"github.com/hirosato/checklist-portal/backend/internal/common/utils"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// SecretSource returns secret strings by id. *secretcache.Cache satisfies it.
type SecretSource interface {
	GetSecretString(secretID string) (string, error)
}

// Config locates the Cognito user pool tokens are issued by
type Config struct {
	Region     string
	UserPoolID string
	ClientID   string
	StaffGroup string
}

// Verifier turns bearer tokens into portal actors
type Verifier struct {
	issuer     string
	jwksURL    string
	clientID   string
	staffGroup string
	logger     *slog.Logger

	mu    sync.RWMutex
	keys  jwk.Set
	fetch func(ctx context.Context, url string) (jwk.Set, error)

	secrets  SecretSource
	secretID string
}

// Option configures a Verifier
type Option func(*Verifier)

// WithServiceSecret accepts HS256 service tokens signed with the secret stored under secretID
func WithServiceSecret(source SecretSource, secretID string) Option {
	return func(v *Verifier) {
		v.secrets = source
		v.secretID = secretID
	}
}

// WithKeySet preloads the signing keys instead of fetching them
func WithKeySet(keys jwk.Set) Option {
	return func(v *Verifier) {
		v.keys = keys
	}
}

// WithKeyFetcher replaces the JWKS download
func WithKeyFetcher(fetch func(ctx context.Context, url string) (jwk.Set, error)) Option {
	return func(v *Verifier) {
		v.fetch = fetch
	}
}

// NewVerifier creates a verifier for the user pool
func NewVerifier(cfg Config, logger *slog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		issuer:     utils.GetTokenIssuer(cfg.UserPoolID, cfg.Region),
		jwksURL:    utils.BuildJWKSURL(cfg.UserPoolID, cfg.Region),
		clientID:   cfg.ClientID,
		staffGroup: cfg.StaffGroup,
		logger:     logger,
		fetch: func(ctx context.Context, url string) (jwk.Set, error) {
			return jwk.Fetch(ctx, url)
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token and returns the actor it identifies.
// The token may be given raw or as an Authorization header value.
func (v *Verifier) Verify(ctx context.Context, bearer string) (portal.Actor, error) {
	token := bearer
	if t, err := utils.ExtractBearerToken(bearer); err == nil {
		token = t
	}
	if token == "" {
		return portal.Actor{}, commonErrors.NewAuthenticationError("token is required")
	}

	alg, err := utils.TokenAlgorithm(token)
	if err != nil {
		return portal.Actor{}, commonErrors.NewAuthenticationError("malformed token")
	}

	switch alg {
	case jwt.SigningMethodRS256.Alg():
		return v.verifyCognito(ctx, token)
	case jwt.SigningMethodHS256.Alg():
		return v.verifyService(token)
	default:
		return portal.Actor{}, commonErrors.NewAuthenticationError(fmt.Sprintf("unsupported token algorithm %s", alg))
	}
}

func (v *Verifier) verifyCognito(ctx context.Context, token string) (portal.Actor, error) {
	claims, err := utils.ParseJWT(token, &utils.CognitoClaims{}, v.cognitoKey(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		v.logger.WarnContext(ctx, "token validation failed", "error", err)
		return portal.Actor{}, commonErrors.NewAuthenticationError("invalid token")
	}

	switch claims.TokenUse {
	case "id":
		aud, _ := claims.GetAudience()
		if v.clientID != "" && !slices.Contains(aud, v.clientID) {
			return portal.Actor{}, commonErrors.NewAuthenticationError("token audience mismatch")
		}
	case "access":
		if v.clientID != "" && claims.ClientID != v.clientID {
			return portal.Actor{}, commonErrors.NewAuthenticationError("token client mismatch")
		}
	default:
		return portal.Actor{}, commonErrors.NewAuthenticationError("unexpected token use")
	}

	if v.staffGroup != "" && utils.HasGroup(claims, v.staffGroup) {
		return portal.Actor{Subject: claims.Subject, Role: portal.RoleStaff}, nil
	}
	if claims.ClientBinding == "" {
		return portal.Actor{}, commonErrors.NewAuthorizationError("token is not bound to a client")
	}
	return portal.Actor{Subject: claims.Subject, Role: portal.RoleClient, ClientID: claims.ClientBinding}, nil
}

// cognitoKey resolves the signing key by kid, refreshing the key set once on a miss.
func (v *Verifier) cognitoKey(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid")
		}

		key, ok := v.lookup(kid)
		if !ok {
			if err := v.refresh(ctx); err != nil {
				return nil, err
			}
			if key, ok = v.lookup(kid); !ok {
				return nil, fmt.Errorf("unknown signing key %s", kid)
			}
		}

		var raw interface{}
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		return raw, nil
	}
}

func (v *Verifier) lookup(kid string) (jwk.Key, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.keys == nil {
		return nil, false
	}
	return v.keys.LookupKeyID(kid)
}

func (v *Verifier) refresh(ctx context.Context) error {
	keys, err := v.fetch(ctx, v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to refresh JWK set: %w", err)
	}
	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

func (v *Verifier) verifyService(token string) (portal.Actor, error) {
	if v.secrets == nil {
		return portal.Actor{}, commonErrors.NewAuthenticationError("service tokens are not accepted")
	}
	secret, err := v.secrets.GetSecretString(v.secretID)
	if err != nil {
		return portal.Actor{}, commonErrors.NewInternalError("failed to read service token secret", err)
	}

	claims, err := utils.ParseJWT(token, &utils.ServiceClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return portal.Actor{}, commonErrors.NewAuthenticationError("invalid service token")
	}

	actor := portal.Actor{Subject: claims.Subject, Role: portal.Role(claims.Role), ClientID: claims.ClientBinding}
	switch actor.Role {
	case portal.RoleStaff:
		actor.ClientID = ""
		return actor, nil
	case portal.RoleClient:
		if actor.ClientID == "" {
			return portal.Actor{}, commonErrors.NewAuthorizationError("token is not bound to a client")
		}
		return actor, nil
	default:
		return portal.Actor{}, commonErrors.NewAuthorizationError(fmt.Sprintf("unknown role %q", claims.Role))
	}
}
