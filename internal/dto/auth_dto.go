package dto

import "github.com/ahmetcoskunkizilkaya/postboard/internal/auth"

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	User *auth.User `json:"user"`
}

// LoginResponse carries the session token mutating routes expect as a Bearer token.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Backend   string `json:"backend"`
	Feed      string `json:"feed"`
}
