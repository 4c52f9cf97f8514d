package services

import (
	"context"

	"pillsreminder/internal/events"
	"pillsreminder/internal/models"
)

// Notifier delivers chat messages. The returned id is opaque and only passed back to Update.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int64, error)
	Update(ctx context.Context, chatID, messageID int64, text string) error
}

// ChangePublisher is told about every mutation the reporting layer cares about
type ChangePublisher interface {
	Publish(c events.Change) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Change) bool { return false }

func orNop(p ChangePublisher) ChangePublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
