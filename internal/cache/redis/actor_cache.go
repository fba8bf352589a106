package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/domain/chat"

	goredis "github.com/redis/go-redis/v9"
)

// CachedStore is a chat.Store whose actor lookups are served from Redis when
// possible. Relay and egress resolve the conversation owner on every message,
// so these reads are the hot path. Cache failures fall through to the store.
type CachedStore struct {
	chat.Store
	client goredis.Cmdable
	ttl    time.Duration
}

func NewCachedStore(store chat.Store, client goredis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: store, client: client, ttl: ttl}
}

func keyByID(id int64) string { return fmt.Sprintf("actor:id:%d", id) }
func keyByExternal(externalID string) string {
	return fmt.Sprintf("actor:ext:%s", externalID)
}

func (c *CachedStore) GetActorByID(ctx context.Context, id int64) (*chat.Actor, error) {
	if a, ok := c.get(ctx, keyByID(id)); ok {
		return a, nil
	}
	a, err := c.Store.GetActorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, a)
	return a, nil
}

func (c *CachedStore) GetActorByExternalID(ctx context.Context, externalID string) (*chat.Actor, error) {
	if a, ok := c.get(ctx, keyByExternal(externalID)); ok {
		return a, nil
	}
	a, err := c.Store.GetActorByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, a)
	return a, nil
}

func (c *CachedStore) UpdateActorDisplayName(ctx context.Context, id int64, displayName string) error {
	if err := c.Store.UpdateActorDisplayName(ctx, id, displayName); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) get(ctx context.Context, key string) (*chat.Actor, bool) {
	v, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warn().Err(err).Str("key", key).Msg("actor cache read failed")
		}
		return nil, false
	}
	var a chat.Actor
	if err := json.Unmarshal(v, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (c *CachedStore) set(ctx context.Context, a *chat.Actor) {
	b, err := json.Marshal(a)
	if err != nil {
		return
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyByID(a.ID), b, c.ttl)
	if a.ExternalID != "" {
		pipe.Set(ctx, keyByExternal(a.ExternalID), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn().Err(err).Int64("actor_id", a.ID).Msg("actor cache write failed")
	}
}

// invalidate drops both keys of the actor.
func (c *CachedStore) invalidate(ctx context.Context, id int64) {
	keys := []string{keyByID(id)}
	if a, err := c.Store.GetActorByID(ctx, id); err == nil && a.ExternalID != "" {
		keys = append(keys, keyByExternal(a.ExternalID))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn().Err(err).Int64("actor_id", id).Msg("actor cache invalidate failed")
	}
}
