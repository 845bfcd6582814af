package dto

import "github.com/ahmetcoskunkizilkaya/postboard/internal/posts"

type CreatePostRequest struct {
	Content string `json:"content"`
}

type CreatePostResponse struct {
	ID string `json:"id"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type CommentResponse struct {
	Comment *posts.Comment `json:"comment"`
}

type LikeResponse struct {
	Liked bool `json:"liked"`
}
