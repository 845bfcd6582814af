package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	signedIn fiber.Handler,
	authHandler *handlers.AuthHandler,
	postHandler *handlers.PostHandler,
	streamHandler *handlers.StreamHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	api.Get("/health", healthHandler.Check)

	// General API rate limiter: 120 req/min per IP. The event stream is one long request.
	api.Get("/posts/stream", streamHandler.Stream)
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	authLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
	api.Post("/auth/register", authLimit, authHandler.Register)
	api.Post("/auth/login", authLimit, authHandler.Login)
	api.Get("/auth/state", authHandler.State)

	api.Get("/posts", postHandler.List)
	api.Post("/posts/subscribe", postHandler.Resubscribe)

	// Mutations need a live session token of the signed-in user
	protected := []fiber.Handler{middleware.JWTProtected(cfg), signedIn}
	api.Post("/auth/logout", append(protected, authHandler.Logout)...)

	api.Post("/posts", append(protected, postHandler.Create)...)
	api.Post("/posts/:id/like", append(protected, postHandler.ToggleLike)...)
	api.Delete("/posts/:id", append(protected, postHandler.Delete)...)
	api.Post("/posts/:id/comments", append(protected, postHandler.AddComment)...)
	api.Post("/posts/:id/comments/:commentId/like", append(protected, postHandler.ToggleCommentLike)...)
	api.Delete("/posts/:id/comments/:commentId", append(protected, postHandler.DeleteComment)...)
}
