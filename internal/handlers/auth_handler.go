package handlers

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/auth"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	sess     *session.Session
	provider *identity.Local
}

func NewAuthHandler(sess *session.Session, provider *identity.Local) *AuthHandler {
	return &AuthHandler{sess: sess, provider: provider}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	user, err := h.provider.Register(c.UserContext(), identity.Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, identity.ErrWeakRegistration):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.RegisterResponse{User: auth.MapIdentity(user)})
}

// Login signs the session in with the posted credentials. The auth store's status
// reflects the outcome either way.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	prompt := identity.StaticPrompter{Email: req.Email, Password: req.Password}
	err := h.sess.Dispatch(c.UserContext(), "login", func(ctx context.Context) error {
		return h.sess.Auth.LoginWithProvider(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return respondError(c, err)
	}

	current := h.provider.Current()
	if current == nil {
		return respondError(c, errors.New("signed out during login"))
	}
	return c.JSON(dto.LoginResponse{Token: current.Token, User: auth.MapIdentity(current)})
}

func (h *AuthHandler) State(c *fiber.Ctx) error {
	return c.JSON(h.sess.Auth.State())
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.sess.Dispatch(c.UserContext(), "logout", h.sess.Auth.Logout); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}
