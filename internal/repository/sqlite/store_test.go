package sqlite

import (
	"context"
	"testing"
	"time"

	"support-relay-backend/internal/domain/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedConversation(t *testing.T, s *Store) (*chat.Actor, *chat.Conversation) {
	t.Helper()
	ctx := context.Background()
	a := &chat.Actor{Kind: chat.ActorGuest, Username: "guest_1"}
	require.NoError(t, s.CreateActor(ctx, a))
	c := &chat.Conversation{OwnerID: a.ID, Title: chat.DefaultConversationTitle}
	require.NoError(t, s.CreateConversation(ctx, c))
	return a, c
}

func TestActorLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tg := &chat.Actor{Kind: chat.ActorTelegram, ExternalID: "12345", Username: "alice", DisplayName: "Alice"}
	require.NoError(t, s.CreateActor(ctx, tg))
	g1 := &chat.Actor{Kind: chat.ActorGuest, Username: "guest_a"}
	g2 := &chat.Actor{Kind: chat.ActorGuest, Username: "guest_b"}
	require.NoError(t, s.CreateActor(ctx, g1))
	require.NoError(t, s.CreateActor(ctx, g2), "guests without external id must not collide")

	got, err := s.GetActorByExternalID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, tg.ID, got.ID)
	assert.Equal(t, "Alice", got.Name())
	assert.True(t, got.TelegramLinked())

	_, err = s.GetActorByExternalID(ctx, "999")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	require.NoError(t, s.UpdateActorDisplayName(ctx, tg.ID, "Alice B"))
	got, err = s.GetActorByID(ctx, tg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.DisplayName)

	assert.ErrorIs(t, s.UpdateActorDisplayName(ctx, 4242, "x"), chat.ErrNotFound)

	actors, err := s.ListActors(ctx)
	require.NoError(t, err)
	assert.Len(t, actors, 3)
}

func TestInsertMessageOrdering(t *testing.T) {
	ctx := context.Background()
	fixed := time.Unix(1700000000, 0)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	a, c := seedConversation(t, s)

	for _, body := range []string{"one", "two", "three"} {
		m := &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderUser, SenderID: &a.ID, Body: body}
		require.NoError(t, s.InsertMessage(ctx, m))
		assert.NotZero(t, m.ID)
	}

	msgs, err := s.ListMessagesForConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "two", msgs[1].Body)
	assert.Equal(t, "three", msgs[2].Body)
	assert.Equal(t, "guest_1", msgs[0].SenderName)
}

func TestInsertMessageNeverGoesBackwards(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	s := newTestStore(t, WithClock(func() time.Time { return now }))
	a, c := seedConversation(t, s)

	first := &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderUser, SenderID: &a.ID, Body: "first"}
	require.NoError(t, s.InsertMessage(ctx, first))

	now = now.Add(-time.Hour)
	second := &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderUser, SenderID: &a.ID, Body: "second"}
	require.NoError(t, s.InsertMessage(ctx, second))

	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
}

func TestInsertMessageUnknownConversation(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertMessage(context.Background(), &chat.Message{ConversationID: 77, SenderKind: chat.SenderAdmin, Body: "hi"})
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestMessageSenderNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, c := seedConversation(t, s)

	admin := &chat.AdminCredential{Username: "root", PasswordHash: "x"}
	require.NoError(t, s.CreateAdminCredential(ctx, admin))

	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderUser, SenderID: &a.ID, Body: "help"}))
	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderAdmin, SenderID: &admin.ID, Body: "sure"}))
	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ConversationID: c.ID, SenderKind: chat.SenderAdmin, Body: "system"}))

	msgs, err := s.ListMessagesForConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "guest_1", msgs[0].SenderName)
	assert.Equal(t, "root", msgs[1].SenderName)
	assert.Equal(t, "Admin", msgs[2].SenderName)
	assert.Nil(t, msgs[2].SenderID)
}

func TestConversationListing(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	a, older := seedConversation(t, s)
	now = now.Add(time.Minute)
	newer := &chat.Conversation{OwnerID: a.ID, Title: "Second"}
	require.NoError(t, s.CreateConversation(ctx, newer))

	other := &chat.Actor{Kind: chat.ActorGuest, Username: "guest_2"}
	require.NoError(t, s.CreateActor(ctx, other))
	require.NoError(t, s.CreateConversation(ctx, &chat.Conversation{OwnerID: other.ID, Title: "Other"}))

	latest, err := s.LatestConversationForActor(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	// A new message moves the older conversation to the top.
	now = now.Add(time.Minute)
	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ConversationID: older.ID, SenderKind: chat.SenderUser, SenderID: &a.ID, Body: "bump"}))

	mine, err := s.ListConversationsForActor(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, older.ID, mine[0].ID)
	assert.Equal(t, 1, mine[0].MessageCount)
	assert.Equal(t, "bump", mine[0].LastMessage)
	assert.Equal(t, "guest_1", mine[0].OwnerName)

	all, err := s.ListAllConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	owner, err := s.GetConversationOwner(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner)

	_, err = s.GetConversationOwner(ctx, 999)
	assert.ErrorIs(t, err, chat.ErrNotFound)

	_, err = s.LatestConversationForActor(ctx, 999)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestOneTimeTokenRedeemsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := seedConversation(t, s)

	tok := &chat.OneTimeToken{Token: "abc", ActorID: a.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateOneTimeToken(ctx, tok))

	got, err := s.RedeemOneTimeToken(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ActorID)

	_, err = s.RedeemOneTimeToken(ctx, "abc")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestDeleteExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := seedConversation(t, s)
	now := time.Now()

	require.NoError(t, s.CreateOneTimeToken(ctx, &chat.OneTimeToken{Token: "old", ActorID: a.ID, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.CreateOneTimeToken(ctx, &chat.OneTimeToken{Token: "new", ActorID: a.ID, ExpiresAt: now.Add(time.Hour)}))

	n, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.RedeemOneTimeToken(ctx, "new")
	assert.NoError(t, err)
}

func TestAdminCredentials(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &chat.AdminCredential{Username: "admin", PasswordHash: "hash", Email: "a@example.com"}
	require.NoError(t, s.CreateAdminCredential(ctx, c))
	assert.Error(t, s.CreateAdminCredential(ctx, &chat.AdminCredential{Username: "admin", PasswordHash: "x"}))

	got, err := s.GetAdminCredential(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	byID, err := s.GetAdminCredentialByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", byID.Username)

	_, err = s.GetAdminCredential(ctx, "nobody")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
