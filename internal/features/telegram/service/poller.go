package service

import (
	"context"
	"time"

	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/platform/telegram"
)

// UpdateSource long-polls the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// UpdateHandler consumes one update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update)
}

// Poller feeds getUpdates results to a handler until its context ends. It is
// the alternative to the webhook for deployments without a public endpoint.
type Poller struct {
	api     UpdateSource
	handler UpdateHandler
	timeout time.Duration
	backoff time.Duration
}

func NewPoller(api UpdateSource, handler UpdateHandler) *Poller {
	return &Poller{api: api, handler: handler, timeout: 30 * time.Second, backoff: 3 * time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	log := logger.Component("telegram-poller")
	log.Info().Msg("Starting Telegram long polling")

	var offset int64
	for {
		updates, err := p.api.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Stopping Telegram long polling")
				return
			}
			log.Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			p.handler.HandleUpdate(ctx, u)
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
	}
}
