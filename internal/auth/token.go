package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-replication-server/internal/config"
)

const (
	// Audience is the aud claim of every replication token
	Audience = "replication"

	// DefaultTokenTTL bounds the lifetime of issued tokens
	DefaultTokenTTL = 10 * time.Minute

	// ScopeNode grants node-level calls such as status and event draining
	ScopeNode = "*"

	// clockSkew tolerated when validating token times
	clockSkew = 30 * time.Second
)

// Claims are the JWT claims exchanged between replication nodes
type Claims struct {
	jwt.RegisteredClaims
	// Scope is the resource key the token grants access to, or "*" for node-level calls
	Scope string `json:"scope,omitempty"`
}

// Allows reports whether the token grants access to scope
func (c *Claims) Allows(scope string) bool {
	return c.Scope == ScopeNode || c.Scope == scope
}

// TokenIssuer issues Authorization header values for outbound requests.
//
//go:generate mockgen -destination=mocks/mock_issuer.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/auth TokenIssuer
type TokenIssuer interface {
	Issue(ctx context.Context, scope string) (string, error)
}

// JWTIssuer signs HS256 tokens with a secret shared by all nodes
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ TokenIssuer = (*JWTIssuer)(nil)

// IssuerOption configures a JWTIssuer
type IssuerOption func(*JWTIssuer)

// WithTTL sets the token lifetime
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *JWTIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock overrides the time source
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *JWTIssuer) {
		i.now = now
	}
}

// NewJWTIssuer creates an issuer identified by nodeName
func NewJWTIssuer(key []byte, nodeName string, opts ...IssuerOption) (*JWTIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", config.ErrConfiguration)
	}
	if nodeName == "" {
		return nil, fmt.Errorf("%w: node name is required", config.ErrConfiguration)
	}
	i := &JWTIssuer{key: key, issuer: nodeName, ttl: DefaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue returns "Bearer <jwt>" for scope
func (i *JWTIssuer) Issue(_ context.Context, scope string) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign token: %v", config.ErrConfiguration, err)
	}
	return "Bearer " + signed, nil
}

// TokenVerifier validates tokens issued by a JWTIssuer with the same key
type TokenVerifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewTokenVerifier creates a verifier for key
func NewTokenVerifier(key []byte, now func() time.Time) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	return &TokenVerifier{key: key, parser: jwt.NewParser(opts...)}
}

// Verify parses and validates a raw token
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Issuer == "" {
		return nil, errors.New("token has no issuer")
	}
	return claims, nil
}
