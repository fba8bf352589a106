package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups when the row is absent.
var ErrNotFound = errors.New("not found")

// Store is the durable CRUD contract for actors, conversations, messages and
// credentials. Implementations own their own consistency discipline.
type Store interface {
	CreateActor(ctx context.Context, a *Actor) error
	GetActorByID(ctx context.Context, id int64) (*Actor, error)
	GetActorByExternalID(ctx context.Context, externalID string) (*Actor, error)
	UpdateActorDisplayName(ctx context.Context, id int64, displayName string) error
	ListActors(ctx context.Context) ([]Actor, error)

	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversationOwner(ctx context.Context, conversationID int64) (int64, error)
	LatestConversationForActor(ctx context.Context, actorID int64) (*Conversation, error)
	ListConversationsForActor(ctx context.Context, actorID int64) ([]ConversationSummary, error)
	ListAllConversations(ctx context.Context) ([]ConversationSummary, error)

	// InsertMessage appends m and bumps the conversation's updated_at in one
	// atomic step. It fills m.ID and m.CreatedAt; CreatedAt never goes backwards
	// within a conversation.
	InsertMessage(ctx context.Context, m *Message) error
	// ListMessagesForConversation returns messages ordered by created_at, then id.
	ListMessagesForConversation(ctx context.Context, conversationID int64) ([]MessageView, error)

	CreateOneTimeToken(ctx context.Context, t *OneTimeToken) error
	// RedeemOneTimeToken deletes the token if present and returns it. A second
	// call for the same token returns ErrNotFound. Expiry is the caller's check.
	RedeemOneTimeToken(ctx context.Context, token string) (*OneTimeToken, error)
	// DeleteExpiredTokens purges tokens that expired before now.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	CreateAdminCredential(ctx context.Context, c *AdminCredential) error
	GetAdminCredential(ctx context.Context, username string) (*AdminCredential, error)
	GetAdminCredentialByID(ctx context.Context, id int64) (*AdminCredential, error)

	Ping(ctx context.Context) error
	Close() error
}
