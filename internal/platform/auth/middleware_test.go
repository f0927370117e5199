package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(subject string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func runJWT(t *testing.T, cfg JWTConfig, authHeader string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return JWTMiddleware(cfg)(handler)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", status)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != status {
		t.Errorf("expected %d, got %d", status, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Basic dXNlcjpwYXNz", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123"), testSigningKey)

	var handlerCalled bool
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, func(c echo.Context) error {
		handlerCalled = true
		return okHandler(c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Error("handler was not called")
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims("user-123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	tokenStr := createTestToken(t, claims, testSigningKey)

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123"), []byte("some-other-key"))

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_MissingSubject(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(""), testSigningKey)

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims("user-123")
	claims.Issuer = "https://elsewhere.example"
	tokenStr := createTestToken(t, claims, testSigningKey)

	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.example"}
	err := runJWT(t, cfg, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ClaimsExtraction(t *testing.T) {
	claims := validClaims("user-456")
	claims.Roles = []string{"user", "admin"}
	tokenStr := createTestToken(t, claims, testSigningKey)

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "user-456" {
			t.Errorf("expected user_id=user-456, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 2 || roles[0] != "user" || roles[1] != "admin" {
			t.Errorf("expected roles=[user admin], got %v", roles)
		}
		return okHandler(c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_DefaultRole(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-789"), testSigningKey)

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, func(c echo.Context) error {
		roles := RolesFromContext(c.Request().Context())
		if len(roles) != 1 || roles[0] != RoleUser {
			t.Errorf("expected roles=[user], got %v", roles)
		}
		return okHandler(c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := DevAuthMiddleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "dev-user" {
			t.Errorf("expected user_id=dev-user, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleUser {
			t.Errorf("expected roles=[user], got %v", roles)
		}
		return okHandler(c)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_UserHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "alice")
	c := e.NewContext(req, httptest.NewRecorder())

	err := DevAuthMiddleware()(func(c echo.Context) error {
		if uid := UserIDFromContext(c.Request().Context()); uid != "alice" {
			t.Errorf("expected user_id=alice, got %s", uid)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
