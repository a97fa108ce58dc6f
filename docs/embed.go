// Package docs carries the generated OpenAPI description of the HTTP API.
package docs

import _ "embed"

// SwaggerJSON is swagger.json as written by swag (see internal/handlers/swagger.go).
//
//go:embed swagger.json
var SwaggerJSON []byte
