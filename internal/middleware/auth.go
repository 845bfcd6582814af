package middleware

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/auth"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// Verifier checks that a session token has not been revoked.
type Verifier func(ctx context.Context, token string) (*identity.User, error)

// SignedIn runs after JWTProtected. It rejects revoked tokens and tokens that do not
// belong to the identity the auth store currently holds.
func SignedIn(store *auth.Store, verify Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return unauthorized(c, "Unauthorized")
		}

		verified, err := verify(c.UserContext(), token.Raw)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrAccountNotFound) {
				return unauthorized(c, "Unauthorized: session has ended")
			}
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Identity provider unavailable",
			})
		}

		current := store.User()
		if current == nil || current.UID != verified.UID {
			return unauthorized(c, "Unauthorized: not the signed-in user")
		}

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}
