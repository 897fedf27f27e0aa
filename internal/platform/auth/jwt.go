// Package auth authenticates learners by bearer token and gates admin routes.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/learning-platform/internal/platform/api"
)

// clockSkew tolerated on exp, nbf and iat.
const clockSkew = 30 * time.Second

var (
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("JWT_SECRET is required")
	// ErrNoSubject rejects tokens that do not name a learner.
	ErrNoSubject = errors.New("token has no subject")
)

type ctxKeyUserID struct{}
type ctxKeyRole struct{}

// UserIDFromContext returns the learner id injected by RequireUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// Claims carried by learner and operator tokens. Subject is the learner id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. Tokens must
// carry exp and sub.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(secret string) (JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return JWTVerifier{}, ErrEmptySecret
	}
	return JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

func (v JWTVerifier) Parse(token string) (*Claims, error) {
	if v.parser == nil {
		return nil, ErrEmptySecret
	}
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// bearerToken extracts the token from an Authorization header. The message
// is the client-facing reason when ok is false.
func bearerToken(header string) (token, message string, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing bearer token", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", "authorization scheme must be Bearer", false
	}
	return strings.TrimSpace(rest), "", true
}

// RequireUser rejects requests without a valid bearer token and injects the
// token's subject and role into the request context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				api.Unauthorized(w, "UNAUTHORIZED", msg, "")
				return
			}
			claims, err := verifier.Parse(token)
			if err != nil {
				api.Unauthorized(w, "INVALID_TOKEN", "invalid or expired token", "")
				return
			}
			ctx := WithUserID(r.Context(), claims.Subject)
			if role := strings.TrimSpace(claims.Role); role != "" {
				ctx = WithRole(ctx, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
