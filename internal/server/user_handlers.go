package server

import (
	"strings"

	"messiahverse/internal/models"
	"messiahverse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/user/:id. The id may be any known
// identifier for the user; the response is redacted per the owner's
// visibility preferences unless the viewer is the owner.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	alias := strings.TrimSpace(c.Params("id"))
	if alias == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
	}

	profile, err := s.userService.GetPublicProfile(c.Context(), alias, identity(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(profile)
}

// GetMyProfile handles GET /api/user/profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetOwnProfile(c.Context(), identity(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles POST /api/user/profile
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.ProfilePatch
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateOwnProfile(c.Context(), identity(c), req)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(user)
}

// ConfirmDeletion handles POST /api/user/delete/confirm
func (s *Server) ConfirmDeletion(c *fiber.Ctx) error {
	state, err := s.userService.ConfirmDeletion(c.Context(), identity(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(state)
}

// DeleteAccount handles DELETE /api/user/delete
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	if err := s.userService.DeleteOwnAccount(c.Context(), identity(c)); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"message": "Account deleted"})
}
