package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"support-relay-backend/internal/platform/telegram"

	"github.com/stretchr/testify/assert"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	offsets []int64
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	if b == nil {
		return nil, errors.New("temporary failure")
	}
	return b, nil
}

type countingHandler struct {
	ids []int64
}

func (h *countingHandler) HandleUpdate(_ context.Context, u telegram.Update) {
	h.ids = append(h.ids, u.UpdateID)
}

func TestPollerAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{
		batches: [][]telegram.Update{
			{{UpdateID: 10}, {UpdateID: 11}},
			nil,
			{{UpdateID: 12}},
		},
		cancel: cancel,
	}
	h := &countingHandler{}
	p := NewPoller(src, h)
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}

	assert.Equal(t, []int64{10, 11, 12}, h.ids)
	assert.Equal(t, []int64{0, 12, 12, 13}, src.offsets)
}
