package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/database"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	sess    *session.Session
	backend string
}

func NewHealthHandler(sess *session.Session, backend string) *HealthHandler {
	return &HealthHandler{sess: sess, backend: backend}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "disabled"
	if database.DB != nil {
		dbStatus = "ok"
		if err := database.Ping(); err != nil {
			dbStatus = "unhealthy: " + err.Error()
		}
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Backend:   h.backend,
		Feed:      string(h.sess.Posts.State().Status),
	})
}
