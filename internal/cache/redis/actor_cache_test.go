package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"support-relay-backend/internal/domain/chat"
	rplatform "support-relay-backend/internal/platform/redis"
	"support-relay-backend/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := rplatform.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store, err := sqlite.Open(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cached := NewCachedStore(store, client, time.Minute)

	a := &chat.Actor{Kind: chat.ActorTelegram, ExternalID: "cache-test-1", Username: "carol", DisplayName: "Carol"}
	require.NoError(t, cached.CreateActor(ctx, a))
	t.Cleanup(func() { client.Del(ctx, keyByID(a.ID), keyByExternal(a.ExternalID)) })

	got, err := cached.GetActorByExternalID(ctx, "cache-test-1")
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.DisplayName)

	n, err := client.Exists(ctx, keyByID(a.ID), keyByExternal(a.ExternalID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, cached.UpdateActorDisplayName(ctx, a.ID, "Caroline"))
	got, err = cached.GetActorByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Caroline", got.DisplayName)

	_, err = cached.GetActorByID(ctx, a.ID+1000)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
