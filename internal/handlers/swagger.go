package handlers

// @title Unified Inbox API
// @version 1.0.0
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/docs"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@latest init -g swagger.go -o ../../docs --outputTypes json --parseDependency --parseInternal

// SwaggerHandler serves the generated API description and a browser UI for it.
type SwaggerHandler struct {
	spec   []byte
	logger *slog.Logger
}

func NewSwaggerHandler(log *slog.Logger) *SwaggerHandler {
	return &SwaggerHandler{
		spec:   docs.SwaggerJSON,
		logger: log.With(slog.String("handler", "swagger")),
	}
}

func (h *SwaggerHandler) Register(e *echo.Echo) {
	e.GET("/api/swagger.json", h.Spec)
	e.GET("/api/docs", h.UI)
	e.GET("/api/docs/", h.UI)
}

func (h *SwaggerHandler) Spec(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, h.spec)
}

func (h *SwaggerHandler) UI(c echo.Context) error {
	return c.HTML(http.StatusOK, swaggerUIHTML)
}

const swaggerUIHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>Unified Inbox API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({
          url: '/api/swagger.json',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`
