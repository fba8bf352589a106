package workers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	telegram "support-relay-backend/internal/features/telegram/service"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sender struct {
	mu   sync.Mutex
	sent []string
}

func (s *sender) SendMessage(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *sender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestProcessSkipsMalformedEntries(t *testing.T) {
	api := &sender{}
	w := NewEgressStreamWorker(nil, api, "", 0)

	w.process(context.Background(), map[string]interface{}{"chat_id": "abc", "text": "x"})
	w.process(context.Background(), map[string]interface{}{"chat_id": "1"})
	w.process(context.Background(), map[string]interface{}{"chat_id": "1", "text": "hello"})

	assert.Equal(t, []string{"hello"}, api.sent)
}

func TestStreamRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() {
		rdb.Del(context.Background(), telegram.EgressStream)
		rdb.Close()
	})
	rdb.Del(context.Background(), telegram.EgressStream)

	d := telegram.NewStreamDispatcher(rdb)
	d.Dispatch(context.Background(), "555", "queued reply")
	d.Wait()

	api := &sender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewEgressStreamWorker(rdb, api, "test", time.Second).Start(ctx)

	require.Eventually(t, func() bool { return api.count() == 1 }, 10*time.Second, 50*time.Millisecond)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "queued reply", api.sent[0])
}
