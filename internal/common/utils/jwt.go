package utils

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CognitoClaims represents the claims in a Cognito JWT token
type CognitoClaims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"cognito:groups"`
	// ClientBinding is the bookkeeping client a client-role user may open
	ClientBinding string `json:"custom:clientId"`
	TokenUse      string `json:"token_use"`
	ClientID      string `json:"client_id"`
}

// ServiceClaims are carried by HS256 tokens minted for automation
type ServiceClaims struct {
	jwt.RegisteredClaims
	Role          string `json:"role"`
	ClientBinding string `json:"clientId,omitempty"`
}

// ParseJWT parses a JWT token into claims and validates it
func ParseJWT[T jwt.Claims](tokenString string, claims T, keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) (T, error) {
	opts = append(opts, jwt.WithExpirationRequired())
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, opts...)
	if err != nil {
		return claims, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return claims, errors.New("invalid token")
	}

	return claims, nil
}

// TokenAlgorithm reads the alg header without verifying the token
func TokenAlgorithm(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token header: %w", err)
	}
	return token.Method.Alg(), nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header format must be: Bearer {token}")
	}

	return parts[1], nil
}

// GetTokenIssuer constructs the token issuer URL from the Cognito user pool ID
func GetTokenIssuer(userPoolID string, region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// BuildJWKSURL constructs the JWKS URL from the Cognito user pool ID
func BuildJWKSURL(userPoolID string, region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID)
}

// HasGroup checks if the token carries the Cognito group
func HasGroup(claims *CognitoClaims, group string) bool {
	return slices.Contains(claims.Groups, group)
}
