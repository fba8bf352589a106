package service

import (
	"context"
	"strings"
	"testing"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/domain/chat"
	"support-relay-backend/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store), store
}

func guest(t *testing.T, store chat.Store, name string) chat.Principal {
	t.Helper()
	a := &chat.Actor{Kind: chat.ActorGuest, Username: name}
	require.NoError(t, store.CreateActor(context.Background(), a))
	return chat.Principal{ActorID: a.ID, Role: chat.ActorGuest}
}

func TestCreateDefaultsTitle(t *testing.T) {
	svc, store := newService(t)
	p := guest(t, store, "g1")

	c, err := svc.Create(context.Background(), p, "  ")
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultConversationTitle, c.Title)
	assert.Equal(t, p.ActorID, c.OwnerID)

	_, err = svc.Create(context.Background(), p, strings.Repeat("x", 300))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Create(context.Background(), chat.Principal{ActorID: 1, Role: chat.ActorAdmin}, "x")
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestAuthorize(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	owner := guest(t, store, "owner")
	other := guest(t, store, "other")
	admin := chat.Principal{ActorID: 1, Role: chat.ActorAdmin}

	c, err := svc.Create(ctx, owner, "Help")
	require.NoError(t, err)

	got, err := svc.Authorize(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ActorID, got)

	_, err = svc.Authorize(ctx, admin, c.ID)
	assert.NoError(t, err)

	_, err = svc.Authorize(ctx, other, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	_, err = svc.Messages(ctx, other, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	_, err = svc.Authorize(ctx, admin, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListScopesByRole(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := guest(t, store, "a")
	b := guest(t, store, "b")

	_, err := svc.Create(ctx, a, "one")
	require.NoError(t, err)
	_, err = svc.Create(ctx, b, "two")
	require.NoError(t, err)

	mine, err := svc.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "one", mine[0].Title)

	all, err := svc.List(ctx, chat.Principal{ActorID: 1, Role: chat.ActorAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	empty, err := svc.List(ctx, chat.Principal{ActorID: 999, Role: chat.ActorGuest})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLatestOrCreate(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	p := guest(t, store, "tg")

	first, err := svc.LatestOrCreate(ctx, p.ActorID)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultConversationTitle, first.Title)

	again, err := svc.LatestOrCreate(ctx, p.ActorID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}
