package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/auth"
	"github.com/unifiedinbox/inbox/internal/logger"
)

type routes struct{}

func (routes) Register(e *echo.Echo) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/ping", ok)
	e.POST("/webhooks/twilio", ok)
	e.GET("/contacts", ok)
}

func TestAuthSkipsPublicRoutes(t *testing.T) {
	s := NewServer(logger.Discard(), "", "secret", routes{})
	token, _, err := auth.GenerateToken("op-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		method string
		path   string
		authz  string
		want   int
	}{
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodPost, "/webhooks/twilio", "", http.StatusOK},
		{http.MethodGet, "/contacts", "", http.StatusUnauthorized},
		{http.MethodGet, "/contacts", "Bearer garbage", http.StatusUnauthorized},
		{http.MethodGet, "/contacts", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.authz != "" {
			req.Header.Set(echo.HeaderAuthorization, tt.authz)
		}
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s %s auth=%q: got %d, want %d", tt.method, tt.path, tt.authz, rec.Code, tt.want)
		}
	}
}

func TestRedactToken(t *testing.T) {
	tests := map[string]string{
		"/conversations/c1/stream":                "/conversations/c1/stream",
		"/conversations/c1/stream?token=abc":      "/conversations/c1/stream?token=REDACTED",
		"/conversations/c1/ws?token=abc&x=1":      "/conversations/c1/ws?token=REDACTED&x=1",
		"/conversations/c1/ws?limit=5&token=abc.d": "/conversations/c1/ws?limit=5&token=REDACTED",
	}
	for in, want := range tests {
		if got := redactToken(in); got != want {
			t.Fatalf("redactToken(%q) = %q, want %q", in, got, want)
		}
	}
}
