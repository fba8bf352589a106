package models

import (
	"time"

	"support-relay-backend/internal/domain/chat"
)

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"secret"`
}

// TokenRequest carries a one-time hand-off token or a session token.
type TokenRequest struct {
	Token string `json:"token" binding:"required" example:"aB3dE5fG7hJ9kL1mN3pQ5rS7tU9vW1xY"`
}

// SessionResponse is returned by every login route.
type SessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Role      chat.ActorKind `json:"role" enums:"guest,telegram,admin"`
	User      *chat.Actor    `json:"user,omitempty"`
	Admin     *AdminResponse `json:"admin,omitempty"`
}

// AdminResponse is the public part of an admin credential.
type AdminResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// VerifyResponse describes a valid session.
type VerifyResponse struct {
	Valid   bool           `json:"valid"`
	ActorID int64          `json:"actor_id"`
	Role    chat.ActorKind `json:"role"`
	User    *chat.Actor    `json:"user,omitempty"`
}
