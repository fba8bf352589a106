package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/common/metrics"
	"support-relay-backend/internal/platform/telegram"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// EgressStream is the Redis stream queued egress goes through.
	EgressStream = "telegram:egress"

	resultSent        = "sent"
	resultFailed      = "failed"
	resultRateLimited = "rate_limited"
	resultInvalid     = "invalid_recipient"
	resultQueued      = "queued"
)

// Deliver sends text to chatID and records the outcome. Failures come back as
// EXTERNAL_CHANNEL_FAILURE for callers that retry; they are already logged.
func Deliver(ctx context.Context, api Sender, chatID int64, text string) error {
	err := api.SendMessage(ctx, chatID, text)
	switch {
	case err == nil:
		metrics.EgressResults.WithLabelValues(resultSent).Inc()
		return nil
	case telegram.RateLimited(err):
		metrics.EgressResults.WithLabelValues(resultRateLimited).Inc()
	default:
		metrics.EgressResults.WithLabelValues(resultFailed).Inc()
	}
	appErr := apperrors.NewExternalChannelError("telegram", err)
	logger.Warn().Err(appErr).Int64("chat_id", chatID).Msg("Telegram egress failed")
	return appErr
}

// InlineDispatcher sends each message from its own goroutine. The caller's
// cancellation does not abort a send in flight.
type InlineDispatcher struct {
	api     Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineDispatcher(api Sender, timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InlineDispatcher{api: api, timeout: timeout}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, externalID, text string) {
	chatID, ok := ParseChatID(externalID)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		_ = Deliver(ctx, d.api, chatID, text)
	}()
}

// Wait blocks until every dispatched send has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// StreamDispatcher queues egress on a Redis stream for the egress worker.
type StreamDispatcher struct {
	rdb     goredis.Cmdable
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewStreamDispatcher(rdb goredis.Cmdable) *StreamDispatcher {
	return &StreamDispatcher{rdb: rdb, timeout: 2 * time.Second}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, externalID, text string) {
	if _, ok := ParseChatID(externalID); !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := d.rdb.XAdd(ctx, &goredis.XAddArgs{
			Stream: EgressStream,
			Values: map[string]interface{}{"chat_id": externalID, "text": text},
		}).Err()
		if err != nil {
			metrics.EgressResults.WithLabelValues(resultFailed).Inc()
			logger.Warn().Err(err).Str("external_id", externalID).Msg("Queueing Telegram egress failed")
			return
		}
		metrics.EgressResults.WithLabelValues(resultQueued).Inc()
	}()
}

// Wait blocks until every queued entry has been written.
func (d *StreamDispatcher) Wait() {
	d.wg.Wait()
}

// NoopDispatcher is used when no bot token is configured.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, string, string) {}

// ParseChatID validates a stored Telegram external id.
func ParseChatID(externalID string) (int64, bool) {
	chatID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		metrics.EgressResults.WithLabelValues(resultInvalid).Inc()
		logger.Warn().Str("external_id", externalID).Msg("Telegram egress skipped: bad chat id")
		return 0, false
	}
	return chatID, true
}
