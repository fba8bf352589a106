package service

import (
	"context"
	"errors"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/validation"
	"support-relay-backend/internal/domain/chat"
)

// Service exposes conversations to their owners and to admins.
type Service struct {
	store chat.Store
}

func NewService(store chat.Store) *Service {
	return &Service{store: store}
}

// Authorize returns the owner of conversationID if p may read and write it:
// admins always, end users only for their own conversations.
func (s *Service) Authorize(ctx context.Context, p chat.Principal, conversationID int64) (int64, error) {
	owner, err := s.store.GetConversationOwner(ctx, conversationID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return 0, apperrors.NewNotFoundError("conversation", conversationID)
	case err != nil:
		return 0, apperrors.NewStorageError("get conversation owner", err)
	}
	if !p.IsAdmin() && owner != p.ActorID {
		return 0, apperrors.NewAccessDeniedError("not a participant of this conversation").
			WithActorID(p.ActorID)
	}
	return owner, nil
}

// Create opens a conversation owned by p. Admins cannot own conversations.
func (s *Service) Create(ctx context.Context, p chat.Principal, title string) (*chat.Conversation, error) {
	if p.IsAdmin() {
		return nil, apperrors.NewAccessDeniedError("admins cannot own conversations")
	}
	title, err := validation.Title(title, chat.DefaultConversationTitle)
	if err != nil {
		return nil, err
	}
	c := &chat.Conversation{OwnerID: p.ActorID, Title: title}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		return nil, apperrors.NewStorageError("create conversation", err)
	}
	return c, nil
}

// LatestOrCreate returns the owner's most recently active conversation,
// opening a default one when there is none.
func (s *Service) LatestOrCreate(ctx context.Context, ownerID int64) (*chat.Conversation, error) {
	c, err := s.store.LatestConversationForActor(ctx, ownerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return nil, apperrors.NewStorageError("latest conversation", err)
	}
	return s.Create(ctx, chat.Principal{ActorID: ownerID, Role: chat.ActorTelegram}, "")
}

// List returns p's conversations, or every conversation for an admin, most
// recently active first.
func (s *Service) List(ctx context.Context, p chat.Principal) ([]chat.ConversationSummary, error) {
	var (
		out []chat.ConversationSummary
		err error
	)
	if p.IsAdmin() {
		out, err = s.store.ListAllConversations(ctx)
	} else {
		out, err = s.store.ListConversationsForActor(ctx, p.ActorID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("list conversations", err)
	}
	if out == nil {
		out = []chat.ConversationSummary{}
	}
	return out, nil
}

// Messages returns the ordered history of a conversation p may access.
func (s *Service) Messages(ctx context.Context, p chat.Principal, conversationID int64) ([]chat.MessageView, error) {
	if _, err := s.Authorize(ctx, p, conversationID); err != nil {
		return nil, err
	}
	out, err := s.store.ListMessagesForConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.NewStorageError("list messages", err)
	}
	if out == nil {
		out = []chat.MessageView{}
	}
	return out, nil
}

// Actors lists every end user for the admin console.
func (s *Service) Actors(ctx context.Context) ([]chat.Actor, error) {
	out, err := s.store.ListActors(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("list actors", err)
	}
	if out == nil {
		out = []chat.Actor{}
	}
	return out, nil
}
