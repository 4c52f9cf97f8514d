package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes one update. It must not panic and owns its own error reporting.
type Handler interface {
	HandleUpdate(ctx context.Context, u Update)
}

// Poller drives a Handler from getUpdates
type Poller struct {
	client  *Client
	handler Handler
	timeout int
	backoff time.Duration
	log     zerolog.Logger
}

// NewPoller creates a long-polling loop with a 10 second poll timeout
func NewPoller(client *Client, handler Handler, log zerolog.Logger) *Poller {
	return &Poller{
		client:  client,
		handler: handler,
		timeout: 10,
		backoff: 10 * time.Second,
		log:     log.With().Str("component", "poller").Logger(),
	}
}

// Run polls until ctx is canceled. Updates are handled one at a time in arrival order.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Msg("update poller starting")
	var offset int64

	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("update poller stopping")
			return ctx.Err()
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Error().Err(err).Dur("backoff", p.backoff).Msg("Error polling updates")
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handler.HandleUpdate(ctx, u)
		}
	}
}
