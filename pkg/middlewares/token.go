package middlewares

import (
	"strings"

	"thesis_realtime/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenUserID get user from token, set c.locals name
	TokenUserID = "UserID"
	//TokenRole get role from token, set c.locals name
	TokenRole = "role"
)

// ExtractToken reads the credential from the query, cookie or Authorization header
func ExtractToken(c *fiber.Ctx) string {
	if tokenStr := c.Query(QueryToken); tokenStr != "" {
		return tokenStr
	}
	if tokenStr := c.Cookies(CookieToken); tokenStr != "" {
		return tokenStr
	}
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// JWTMiddleware validates the handshake credential and stores user id and role in Locals
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ExtractToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenUserID, claims.UserID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}
