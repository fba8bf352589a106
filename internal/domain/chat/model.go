package chat

import (
	"fmt"
	"time"
)

// ActorKind is fixed when an actor is created; there is no upgrade path.
type ActorKind string

const (
	ActorGuest    ActorKind = "guest"
	ActorTelegram ActorKind = "telegram"
	ActorAdmin    ActorKind = "admin"
)

// SenderKind records which side of the conversation wrote a message.
type SenderKind string

const (
	SenderUser  SenderKind = "user"
	SenderAdmin SenderKind = "admin"
)

// DefaultConversationTitle is used when a conversation is opened without one.
const DefaultConversationTitle = "New Support Request"

// AdminRoom is the shared delivery group every admin connection joins.
const AdminRoom = "admin"

// ActorRoom is the private delivery group of a non-admin actor.
func ActorRoom(actorID int64) string {
	return fmt.Sprintf("actor:%d", actorID)
}

// Actor is an end user (guest or Telegram-linked). Admins live in a separate
// identity space, see AdminCredential.
type Actor struct {
	ID          int64     `json:"id"`
	Kind        ActorKind `json:"kind"`
	ExternalID  string    `json:"external_id,omitempty"` // Telegram numeric id; empty for guests
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name is what other participants see for this actor.
func (a *Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// TelegramLinked reports whether messages to this actor must also be sent to
// Telegram.
func (a *Actor) TelegramLinked() bool {
	return a.Kind == ActorTelegram && a.ExternalID != ""
}

// AdminCredential is the stored login record of an operator.
type AdminCredential struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation belongs to exactly one non-admin actor.
type Conversation struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is a conversation list row.
type ConversationSummary struct {
	Conversation
	OwnerName    string    `json:"owner_name,omitempty"`
	OwnerKind    ActorKind `json:"owner_kind,omitempty"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// Message is an immutable entry of a conversation's append-only log.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderKind     SenderKind `json:"sender_kind"`
	SenderID       *int64     `json:"sender_id,omitempty"` // nil for system messages
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageView is a message with its sender's display name resolved.
type MessageView struct {
	Message
	SenderName string `json:"sender_name"`
}

// OneTimeToken is a single-use Telegram to web hand-off credential.
type OneTimeToken struct {
	Token     string
	ActorID   int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Principal is the verified identity behind a session credential. For admins
// ActorID is the AdminCredential id.
type Principal struct {
	ActorID int64     `json:"actor_id"`
	Role    ActorKind `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == ActorAdmin }

// Room is the delivery group this principal's live connections join.
func (p Principal) Room() string {
	if p.IsAdmin() {
		return AdminRoom
	}
	return ActorRoom(p.ActorID)
}
