package server

import (
	"log"

	"messiahverse/internal/models"
	"messiahverse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// GetMood handles GET /api/mood
func (s *Server) GetMood(c *fiber.Ctx) error {
	status, err := s.moodService.GetCurrent(c.Context())
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(status)
}

// UpdateMood handles POST /api/mood
func (s *Server) UpdateMood(c *fiber.Ctx) error {
	var req service.UpdateMoodInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	status, err := s.moodService.UpdateCurrent(c.Context(), identity(c), req)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(status)
}

// MoodAuth handles GET /api/mood/auth. Tells the client whether the
// current identity may edit the mood, so the UI can hide the controls.
func (s *Server) MoodAuth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"canEdit": s.moodService.CanEdit(identity(c)),
	})
}

// MoodHistory handles GET /api/mood/history
func (s *Server) MoodHistory(c *fiber.Ctx) error {
	entries, err := s.moodService.History(c.Context(), c.IP())
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"history": entries})
}

// WebSocketMoodHandler streams mood updates to any connected client. The
// feed is public and read-only.
func (s *Server) WebSocketMoodHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client, err := s.moodHub.Register(conn)
		if err != nil {
			log.Printf("mood websocket rejected: %v", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
