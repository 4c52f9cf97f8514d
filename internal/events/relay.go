package events

import (
	"context"
	"encoding/json"

	"pillsreminder/internal/models"

	"github.com/rs/zerolog"
)

// Snapshotter computes the reporting view for one user
type Snapshotter interface {
	UserSnapshot(ctx context.Context, userID string) (*models.UserSnapshot, error)
}

// Sink receives serialized snapshots
type Sink interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// snapshotMessage is the payload published after every change
type snapshotMessage struct {
	Change   Change               `json:"change"`
	Snapshot *models.UserSnapshot `json:"snapshot"`
}

// Relay turns bus changes into published user snapshots
type Relay struct {
	bus      *Bus
	snapshot Snapshotter
	sink     Sink
	log      zerolog.Logger
}

// NewRelay builds a relay. sink may be nil, in which case changes are only logged.
func NewRelay(bus *Bus, snapshot Snapshotter, sink Sink, log zerolog.Logger) *Relay {
	return &Relay{bus: bus, snapshot: snapshot, sink: sink, log: log.With().Str("component", "relay").Logger()}
}

// Run consumes changes until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().Bool("publishing", r.sink != nil).Msg("change relay starting")
	changes := r.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("change relay stopping")
			return ctx.Err()
		case c := <-changes:
			if err := r.handle(ctx, c); err != nil {
				r.log.Error().Err(err).Str("kind", string(c.Kind)).Str("user_id", c.UserID).Msg("relay change")
			}
		}
	}
}

func (r *Relay) handle(ctx context.Context, c Change) error {
	r.log.Debug().Str("kind", string(c.Kind)).Str("user_id", c.UserID).Msg("snapshot changed")
	if r.sink == nil {
		return nil
	}
	snap, err := r.snapshot.UserSnapshot(ctx, c.UserID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(snapshotMessage{Change: c, Snapshot: snap})
	if err != nil {
		return err
	}
	return r.sink.Publish(ctx, "pills.changed."+c.UserID, body)
}
