package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/metrics"
	"support-relay-backend/internal/platform/telegram"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64]string
	err  error
	ctxs []context.Context
}

func (s *recordingSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[int64]string{}
	}
	s.sent[chatID] = text
	return nil
}

func TestInlineDispatchSurvivesCallerCancel(t *testing.T) {
	api := &recordingSender{}
	d := NewInlineDispatcher(api, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, "555", "hi")
	d.Wait()

	require.Len(t, api.ctxs, 1)
	assert.NoError(t, api.ctxs[0].Err())
	assert.Equal(t, "hi", api.sent[555])
}

func TestInlineDispatchSkipsBadChatID(t *testing.T) {
	invalid := testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultInvalid))
	api := &recordingSender{}
	d := NewInlineDispatcher(api, time.Second)
	d.Dispatch(context.Background(), "not-a-number", "hi")
	d.Wait()
	assert.Empty(t, api.ctxs)
	assert.Equal(t, invalid+1, testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultInvalid)))
}

func TestInlineDispatchSwallowsFailure(t *testing.T) {
	api := &recordingSender{err: errors.New("blocked by user")}
	d := NewInlineDispatcher(api, time.Second)
	d.Dispatch(context.Background(), "1", "hi")
	d.Wait()
	assert.Len(t, api.ctxs, 1)
}

func TestDeliverCountsResults(t *testing.T) {
	failed := testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultFailed))
	sent := testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultSent))

	api := &recordingSender{err: errors.New("boom")}
	assert.Error(t, Deliver(context.Background(), api, 1, "x"))

	api.err = nil
	assert.NoError(t, Deliver(context.Background(), api, 1, "x"))

	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultFailed)))
	assert.Equal(t, sent+1, testutil.ToFloat64(metrics.EgressResults.WithLabelValues(resultSent)))
}

func TestDeliverClassifiesFailure(t *testing.T) {
	limited := &telegram.APIError{Method: "sendMessage", Code: 429, Description: "Too Many Requests"}
	err := Deliver(context.Background(), &recordingSender{err: limited}, 1, "x")

	assert.ErrorIs(t, err, apperrors.ErrExternalChannel)
	assert.True(t, telegram.RateLimited(err), "api error stays reachable")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "telegram", appErr.Details["channel"])
}

func TestNoopDispatcher(t *testing.T) {
	NoopDispatcher{}.Dispatch(context.Background(), "1", "x")
}
