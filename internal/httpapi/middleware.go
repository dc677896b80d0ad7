package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kalakari/storefront/internal/auth"
	"github.com/kalakari/storefront/internal/domain"
)

type principalKey struct{}

// bearer extracts the token from an "Authorization: Bearer <token>" header.
func bearer(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearer(c)
		if !ok {
			return domain.ErrUnauthorized
		}
		principal, err := tokens.Verify(raw)
		if err != nil {
			return domain.ErrUnauthorized
		}
		c.Locals(principalKey{}, principal)
		return c.Next()
	}
}

// OptionalAuth records the caller when a valid token is present and lets anonymous
// requests through. An invalid token is treated as no token.
func OptionalAuth(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := bearer(c); ok {
			if principal, err := tokens.Verify(raw); err == nil {
				c.Locals(principalKey{}, principal)
			}
		}
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := principalFrom(c)
		if !ok {
			return domain.ErrUnauthorized
		}
		if !principal.IsAdmin() {
			return domain.ErrForbidden
		}
		return c.Next()
	}
}

func principalFrom(c *fiber.Ctx) (auth.Principal, bool) {
	principal, ok := c.Locals(principalKey{}).(auth.Principal)
	return principal, ok
}
