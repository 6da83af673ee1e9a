package server

import (
	"crypto/subtle"
	"time"

	"messiahverse/internal/models"
	"messiahverse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SignIn handles POST /api/auth/signin. Only the OAuth gateway may call
// this; it authenticates with a shared secret and forwards the provider
// profile of a user who just completed the OAuth flow.
func (s *Server) SignIn(c *fiber.Ctx) error {
	secret := c.Get("X-Gateway-Secret")
	if s.config.GatewaySecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.GatewaySecret)) != 1 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthenticatedError("Invalid gateway secret"))
	}

	var req service.SignInInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.userService.SignIn(c.Context(), req)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(result)
}

// Logout handles POST /api/auth/logout. Revokes the presented token.
func (s *Server) Logout(c *fiber.Ctx) error {
	tokenID, expiresAt := s.tokenMetaFromRequest(c)
	if tokenID == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthenticatedError("Invalid token"))
	}

	if err := s.userService.Logout(c.Context(), tokenID, expiresAt); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// tokenMetaFromRequest re-reads the already-validated token for its ID and
// expiry. AuthRequired ran first, so parse failures only happen in tests
// poking the handler directly.
func (s *Server) tokenMetaFromRequest(c *fiber.Ctx) (string, time.Time) {
	authHeader := c.Get("Authorization")
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) {
		return "", time.Time{}
	}

	token, err := jwt.Parse(authHeader[len(prefix):], func(token *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}
	}
	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	return jti, time.Unix(int64(exp), 0)
}
