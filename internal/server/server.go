// Package server provides the HTTP server and Echo setup for the inbox API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/unifiedinbox/inbox/internal/auth"
	"github.com/unifiedinbox/inbox/internal/logger"
)

const bodyLimit = "4M"

// Server is the HTTP server (Echo) with JWT middleware and registered handlers.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// NewServer builds the Echo server with recovery, request logging, JWT auth, and the given handlers.
func NewServer(log *slog.Logger, addr, jwtSecret string,
	handlers ...Handler,
) *Server {
	if addr == "" {
		addr = ":8080"
	}
	serverLog := log.With(slog.String("component", "server"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestScopedLogger(serverLog))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", redactToken(v.URI)),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			serverLog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(jwtSecret, Public))

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: serverLog,
	}
}

// requestScopedLogger stores a logger tagged with the request id in the
// request context, for logger.FromContext.
func requestScopedLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			ctx := logger.WithContext(req.Context(), base.With(slog.String("request_id", id)))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// Public reports whether a request skips operator authentication. Provider
// webhooks authenticate by signature instead.
func Public(c echo.Context) bool {
	path := c.Request().URL.Path
	switch path {
	case "/ping", "/health", "/api/swagger.json":
		return true
	}
	return strings.HasPrefix(path, "/webhooks/") || strings.HasPrefix(path, "/api/docs")
}

// redactToken hides a token passed as a query parameter by stream clients.
func redactToken(uri string) string {
	i := strings.Index(uri, "token=")
	if i < 0 {
		return uri
	}
	end := strings.IndexByte(uri[i:], '&')
	if end < 0 {
		return uri[:i] + "token=REDACTED"
	}
	return uri[:i] + "token=REDACTED" + uri[i+end:]
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown).
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
