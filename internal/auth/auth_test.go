package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-key"

func newTestServer() *echo.Echo {
	e := echo.New()
	e.Use(JWTMiddleware(testSecret, func(c echo.Context) bool {
		return strings.HasPrefix(c.Path(), "/webhooks/")
	}))
	e.GET("/me", func(c echo.Context) error {
		id, err := UserIDFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id+"|"+UserNameFromContext(c))
	})
	e.POST("/webhooks/twilio", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestGenerateTokenClaims(t *testing.T) {
	signed, expiresAt, err := GenerateToken("agent-1", testSecret, 10*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if expiresAt.Before(time.Now().Add(9 * time.Minute)) {
		t.Fatalf("token expires too soon: %s", expiresAt)
	}
	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "agent-1" || claims["user_id"] != "agent-1" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestGenerateTokenRejectsBadInput(t *testing.T) {
	if _, _, err := GenerateToken("", testSecret, time.Minute); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, _, err := GenerateToken("agent-1", "", time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	e := newTestServer()
	signed, _, err := GenerateNamedToken("agent-1", "Ana", testSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "agent-1|Ana" {
		t.Fatalf("header token: %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me?token="+signed, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}

	forged, _, _ := GenerateToken("agent-1", "other-secret", time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("skipped path: expected 200, got %d", rec.Code)
	}
}
