package server

import (
	"messiahverse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Upload handles POST /api/upload. Accepts a base64 image data URL in the
// "data" field ("image" is accepted as a legacy alias) and returns the
// hosted URL and public ID.
func (s *Server) Upload(c *fiber.Ctx) error {
	var req struct {
		Data  string `json:"data"`
		Image string `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	payload := req.Data
	if payload == "" {
		payload = req.Image
	}
	if payload == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file provided"))
	}

	result, err := s.uploadService.Upload(c.Context(), identity(c), payload)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(result)
}
