package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	"support-relay-backend/internal/common/logger"
	telegram "support-relay-backend/internal/features/telegram/service"

	goredis "github.com/redis/go-redis/v9"
)

const (
	consumerGroup = "support_relay_egress"
	readBlock     = 5 * time.Second
	readCount     = 10
)

// EgressStreamWorker drains the Telegram egress stream and sends each entry
// through the Bot API. Entries are acknowledged once handled, delivered or
// not, so a permanently failing chat does not block the stream.
type EgressStreamWorker struct {
	rdb      goredis.Cmdable
	api      telegram.Sender
	consumer string
	timeout  time.Duration
}

func NewEgressStreamWorker(rdb goredis.Cmdable, api telegram.Sender, consumer string, sendTimeout time.Duration) *EgressStreamWorker {
	if consumer == "" {
		consumer = "egress_worker_1"
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &EgressStreamWorker{rdb: rdb, api: api, consumer: consumer, timeout: sendTimeout}
}

// Start blocks until ctx is cancelled.
func (w *EgressStreamWorker) Start(ctx context.Context) {
	log := logger.Component("egress-worker")

	err := w.rdb.XGroupCreateMkStream(ctx, telegram.EgressStream, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Error().Err(err).Msg("Creating consumer group failed")
	}

	log.Info().Str("stream", telegram.EgressStream).Msg("Starting egress stream worker")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Stopping egress stream worker")
			return
		}

		entries, err := w.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: w.consumer,
			Streams:  []string{telegram.EgressStream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Msg("Reading egress stream failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				w.process(ctx, msg.Values)
				if err := w.rdb.XAck(ctx, telegram.EgressStream, consumerGroup, msg.ID).Err(); err != nil {
					log.Warn().Err(err).Str("entry_id", msg.ID).Msg("Ack failed")
				}
			}
		}
	}
}

func (w *EgressStreamWorker) process(ctx context.Context, values map[string]interface{}) {
	externalID, _ := values["chat_id"].(string)
	text, _ := values["text"].(string)
	if text == "" {
		logger.Warn().Interface("values", values).Msg("Egress entry without text")
		return
	}
	chatID, ok := telegram.ParseChatID(externalID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	_ = telegram.Deliver(ctx, w.api, chatID, text)
}
