// Package auth verifies operator bearer tokens and exposes the operator
// identity to handlers.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const contextKey = "user"

var (
	ErrMissingToken = errors.New("missing operator token")
	ErrMissingUser  = errors.New("token has no user id")
)

// JWTMiddleware verifies HS256 tokens from the Authorization header, or the
// token query parameter used by browser stream clients.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    contextKey,
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		Skipper:       skipper,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
		ErrorHandler: func(echo.Context, error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		},
	})
}

// UserIDFromContext returns the operator id of a verified request.
func UserIDFromContext(c echo.Context) (string, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return "", err
	}
	for _, key := range []string{"user_id", "sub"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrMissingUser
}

// UserNameFromContext returns the display name carried by the token, or
// the user id when the token has none.
func UserNameFromContext(c echo.Context) string {
	claims, err := claimsFromContext(c)
	if err != nil {
		return ""
	}
	if name, ok := claims["name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	id, _ := UserIDFromContext(c)
	return id
}

func claimsFromContext(c echo.Context) (jwt.MapClaims, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrMissingToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingToken
	}
	return claims, nil
}

// GenerateToken signs an operator token valid for ttl.
func GenerateToken(userID, secret string, ttl time.Duration) (string, time.Time, error) {
	return GenerateNamedToken(userID, "", secret, ttl)
}

// GenerateNamedToken is GenerateToken with a display name claim.
func GenerateNamedToken(userID, name, secret string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, ErrMissingUser
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token ttl must be positive")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}
	if name = strings.TrimSpace(name); name != "" {
		claims["name"] = name
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
