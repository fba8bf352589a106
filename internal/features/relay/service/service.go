package service

import (
	"context"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/common/metrics"
	"support-relay-backend/internal/common/validation"
	"support-relay-backend/internal/domain/chat"
	"support-relay-backend/internal/realtime"
)

// Authorizer resolves the owner of a conversation the principal may access.
type Authorizer interface {
	Authorize(ctx context.Context, p chat.Principal, conversationID int64) (int64, error)
}

// Broadcaster pushes an encoded event to a room's live connections.
type Broadcaster interface {
	Broadcast(room string, payload []byte) int
}

// Egress hands text to an external channel. Implementations must not block
// the caller and must not report delivery errors back.
type Egress interface {
	Dispatch(ctx context.Context, externalID, text string)
}

// Service is the message relay: authorize, persist, fan out.
type Service struct {
	store  chat.Store
	authz  Authorizer
	rooms  Broadcaster
	egress Egress
}

func NewService(store chat.Store, authz Authorizer, rooms Broadcaster, egress Egress) *Service {
	return &Service{store: store, authz: authz, rooms: rooms, egress: egress}
}

// SubmitMessage persists body in conversationID on behalf of p and delivers it
// to the other side. Nothing is pushed unless the message was stored. Egress
// failures never surface here.
func (s *Service) SubmitMessage(ctx context.Context, p chat.Principal, conversationID int64, body string) (*chat.Message, error) {
	body, err := validation.MessageBody(body)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.authz.Authorize(ctx, p, conversationID)
	if err != nil {
		return nil, err
	}

	senderKind := chat.SenderUser
	if p.IsAdmin() {
		senderKind = chat.SenderAdmin
	}
	senderID := p.ActorID
	m := &chat.Message{
		ConversationID: conversationID,
		SenderKind:     senderKind,
		SenderID:       &senderID,
		Body:           body,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		logger.Error().Err(err).
			Int64("conversation_id", conversationID).
			Int64("actor_id", p.ActorID).
			Msg("Message persistence failed")
		return nil, apperrors.NewStorageError("insert message", err)
	}
	metrics.MessagesSubmitted.WithLabelValues(string(senderKind)).Inc()

	// Everything below is delivery of an already stored message.
	var owner *chat.Actor
	if a, err := s.store.GetActorByID(ctx, ownerID); err == nil {
		owner = a
	} else {
		logger.Warn().Err(err).Int64("actor_id", ownerID).Msg("Owner lookup failed")
	}

	room := chat.AdminRoom
	if p.IsAdmin() {
		room = chat.ActorRoom(ownerID)
	}
	s.push(room, m, s.senderName(ctx, p, owner))

	if p.IsAdmin() && owner != nil && owner.TelegramLinked() && s.egress != nil {
		s.egress.Dispatch(ctx, owner.ExternalID, m.Body)
	}
	return m, nil
}

func (s *Service) push(room string, m *chat.Message, senderName string) {
	payload, err := realtime.EncodeNewMessage(realtime.MessageEvent{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		SenderKind:        string(m.SenderKind),
		Body:              m.Body,
		CreatedAt:         m.CreatedAt,
		SenderDisplayName: senderName,
	})
	if err != nil {
		logger.Error().Err(err).Int64("message_id", m.ID).Msg("Encode push failed")
		return
	}
	n := s.rooms.Broadcast(room, payload)
	logger.Debug().Str("room", room).Int("delivered", n).Int64("message_id", m.ID).Msg("Message pushed")
}

// senderName resolves what the recipient sees as the author.
func (s *Service) senderName(ctx context.Context, p chat.Principal, owner *chat.Actor) string {
	if p.IsAdmin() {
		if cred, err := s.store.GetAdminCredentialByID(ctx, p.ActorID); err == nil && cred.Username != "" {
			return cred.Username
		}
		return "Admin"
	}
	if owner != nil {
		return owner.Name()
	}
	return ""
}
