package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const learnerSecret = "progress-signing-secret"

func sign(t *testing.T, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(learnerSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func learnerClaims(sub, role string, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role: role,
	}
}

func mustVerifier(t *testing.T, secret string) JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(secret)
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	return v
}

func TestNewJWTVerifier_RejectsBlankSecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		if _, err := NewJWTVerifier(secret); !errors.Is(err, ErrEmptySecret) {
			t.Fatalf("secret %q: expected ErrEmptySecret, got %v", secret, err)
		}
	}
}

func TestParse_ZeroVerifierRejects(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, learnerClaims("learner-1", "", time.Hour))
	if _, err := (JWTVerifier{}).Parse(tok); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestParse_LearnerToken(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, learnerClaims("learner-1", "admin", time.Hour))
	claims, err := mustVerifier(t, learnerSecret).Parse(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "learner-1" || claims.Role != "admin" {
		t.Fatalf("expected learner-1/admin, got %s/%s", claims.Subject, claims.Role)
	}
}

func TestParse_Rejects(t *testing.T) {
	noExp := learnerClaims("learner-1", "", time.Hour)
	noExp.ExpiresAt = nil

	valid := sign(t, jwt.SigningMethodHS256, learnerClaims("learner-1", "", time.Hour))
	parts := strings.Split(valid, ".")

	cases := []struct {
		name  string
		token string
		sec   string
		want  error
	}{
		{"expired", sign(t, jwt.SigningMethodHS256, learnerClaims("learner-1", "", -time.Hour)), learnerSecret, jwt.ErrTokenExpired},
		{"missing exp", sign(t, jwt.SigningMethodHS256, noExp), learnerSecret, jwt.ErrTokenRequiredClaimMissing},
		{"missing subject", sign(t, jwt.SigningMethodHS256, learnerClaims("", "", time.Hour)), learnerSecret, ErrNoSubject},
		{"other hmac", sign(t, jwt.SigningMethodHS512, learnerClaims("learner-1", "", time.Hour)), learnerSecret, jwt.ErrTokenSignatureInvalid},
		{"other secret", valid, "rotated-secret", jwt.ErrTokenSignatureInvalid},
		{"edited payload", parts[0] + ".eyJzdWIiOiJsZWFybmVyLTIifQ." + parts[2], learnerSecret, jwt.ErrTokenSignatureInvalid},
		{"garbage", "a.b.c.d", learnerSecret, jwt.ErrTokenMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mustVerifier(t, tc.sec).Parse(tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func serveRequireUser(t *testing.T, authz string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/content/state/update", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	var uid, role string
	rr := httptest.NewRecorder()
	RequireUser(mustVerifier(t, learnerSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ = UserIDFromContext(r.Context())
		role, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)
	return rr, uid, role
}

func TestRequireUser_InjectsIdentity(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, learnerClaims("learner-7", " admin ", time.Hour))
	rr, uid, role := serveRequireUser(t, "bearer "+tok)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if uid != "learner-7" || role != "admin" {
		t.Fatalf("expected learner-7/admin, got %q/%q", uid, role)
	}
}

func TestRequireUser_Unauthorized(t *testing.T) {
	expired := sign(t, jwt.SigningMethodHS256, learnerClaims("learner-7", "", -time.Hour))
	anonymous := sign(t, jwt.SigningMethodHS256, learnerClaims("", "", time.Hour))

	cases := []struct {
		name, authz, code string
	}{
		{"no header", "", "UNAUTHORIZED"},
		{"basic scheme", "Basic bGVhcm5lcjpwdw==", "UNAUTHORIZED"},
		{"scheme only", "Bearer", "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, "INVALID_TOKEN"},
		{"no subject", "Bearer " + anonymous, "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, _, _ := serveRequireUser(t, tc.authz)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %q", ct)
			}
			if !strings.Contains(rr.Body.String(), `"code":"`+tc.code+`"`) {
				t.Fatalf("expected %s, got %s", tc.code, rr.Body.String())
			}
		})
	}
}

func callRequireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin_WithAdminRole(t *testing.T) {
	ctx := WithRole(context.Background(), "admin")
	rr := callRequireAdmin(ctx)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", rr.Code)
	}
}

func TestRequireAdmin_WithUserRole(t *testing.T) {
	ctx := WithRole(context.Background(), "user")
	rr := callRequireAdmin(ctx)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", rr.Code)
	}
}

func TestRequireAdmin_NoRole(t *testing.T) {
	rr := callRequireAdmin(context.Background())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no role, got %d", rr.Code)
	}
}

func TestRequireAdmin_CaseInsensitive(t *testing.T) {
	ctx := WithRole(context.Background(), "ADMIN")
	rr := callRequireAdmin(ctx)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for ADMIN (case insensitive), got %d", rr.Code)
	}
}

func TestCanActFor(t *testing.T) {
	self := WithUserID(context.Background(), "user-1")
	if !CanActFor(self, "user-1") {
		t.Fatal("expected user to act for themselves")
	}
	if CanActFor(self, "user-2") {
		t.Fatal("expected user to be denied for another user")
	}
	admin := WithRole(WithUserID(context.Background(), "ops"), "Admin")
	if !CanActFor(admin, "user-2") {
		t.Fatal("expected admin to act for any user")
	}
	if CanActFor(context.Background(), "") {
		t.Fatal("expected anonymous caller to be denied")
	}
}
