package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"exchange_bridge/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig selects the bearer strategy: a static API token, an HS256
// JWT secret, or both (token checked first).
type AuthConfig struct {
	APIToken  string
	JWTSecret string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return c.APIToken != "" || c.JWTSecret != ""
}

// BearerAuth guards a route group with Authorization: Bearer checks.
func BearerAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.Unauthorized("missing authorization header")
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return apperr.Unauthorized("expected bearer token")
		}

		if cfg.APIToken != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIToken)) == 1 {
			c.Locals("auth_method", "token")
			return c.Next()
		}

		if cfg.JWTSecret != "" {
			if err := verifyHS256(token, cfg.JWTSecret); err == nil {
				c.Locals("auth_method", "jwt")
				return c.Next()
			}
		}

		return apperr.InvalidToken("invalid credentials")
	}
}

func verifyHS256(tokenString, secret string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
