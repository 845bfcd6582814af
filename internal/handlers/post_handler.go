package handlers

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/dto"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/gofiber/fiber/v2"
)

type PostHandler struct {
	sess *session.Session
}

func NewPostHandler(sess *session.Session) *PostHandler {
	return &PostHandler{sess: sess}
}

// List returns the store's current list and status, newest first.
func (h *PostHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.sess.Posts.State())
}

// Resubscribe reopens the live post feed, e.g. after it failed. The feed outlives
// the request.
func (h *PostHandler) Resubscribe(c *fiber.Ctx) error {
	if err := h.sess.Dispatch(c.UserContext(), "subscribe_posts", h.sess.Resubscribe); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.sess.Posts.State())
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	var id string
	err := h.sess.Dispatch(c.UserContext(), "add_post", func(ctx context.Context) error {
		var err error
		id, err = h.sess.Posts.AddPost(ctx, req.Content)
		return err
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreatePostResponse{ID: id})
}

func (h *PostHandler) ToggleLike(c *fiber.Ctx) error {
	var liked bool
	err := h.sess.Dispatch(c.UserContext(), "toggle_like", func(ctx context.Context) error {
		var err error
		liked, err = h.sess.Posts.ToggleLike(ctx, c.Params("id"))
		return err
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.LikeResponse{Liked: liked})
}

func (h *PostHandler) Delete(c *fiber.Ctx) error {
	err := h.sess.Dispatch(c.UserContext(), "delete_post", func(ctx context.Context) error {
		return h.sess.Posts.DeletePost(ctx, c.Params("id"))
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	var comment *posts.Comment
	err := h.sess.Dispatch(c.UserContext(), "add_comment", func(ctx context.Context) error {
		var err error
		comment, err = h.sess.Posts.AddComment(ctx, c.Params("id"), req.Content)
		return err
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CommentResponse{Comment: comment})
}

func (h *PostHandler) ToggleCommentLike(c *fiber.Ctx) error {
	var liked bool
	err := h.sess.Dispatch(c.UserContext(), "toggle_comment_like", func(ctx context.Context) error {
		var err error
		liked, err = h.sess.Posts.ToggleCommentLike(ctx, c.Params("id"), c.Params("commentId"))
		return err
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.LikeResponse{Liked: liked})
}

func (h *PostHandler) DeleteComment(c *fiber.Ctx) error {
	err := h.sess.Dispatch(c.UserContext(), "delete_comment", func(ctx context.Context) error {
		return h.sess.Posts.DeleteComment(ctx, c.Params("id"), c.Params("commentId"))
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
