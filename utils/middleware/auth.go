package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/agent-chat-api/utils/auth"
	"github.com/sahilchouksey/agent-chat-api/utils/response"
)

// AuthMiddleware extracts the caller's user identity from a bearer token.
// Every session operation is scoped to that user id.
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Unauthorized(c, "Invalid authorization format")
		}

		tokenString := parts[1]

		// Validate token
		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		// Store user identity in context
		c.Locals("user_id", claims.UserID)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// UserID returns the authenticated user id stored by Required
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}
