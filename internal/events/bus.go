package events

import "time"

// ChangeKind represents the type of mutation that invalidates reporting snapshots
type ChangeKind string

const (
	ChangeEventRecorded   ChangeKind = "event_recorded"
	ChangeReminderCreated ChangeKind = "reminder_created"
	ChangeReminderUpdated ChangeKind = "reminder_updated"
	ChangeReminderToggled ChangeKind = "reminder_toggled"
	ChangeReminderArchive ChangeKind = "reminder_archived"
	ChangeDataCleaned     ChangeKind = "data_cleaned"
)

// Change carries only ids; consumers re-read state from the store.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	UserID     string     `json:"user_id"`
	ReminderID string     `json:"reminder_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Bus is a lightweight in-process pub-sub backed by a buffered channel.
type Bus struct {
	ch chan Change
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Change, buffer)}
}

// Publish attempts to enqueue the change without blocking.
// Returns true if published, false if the buffer is full or the bus is nil.
func (b *Bus) Publish(c Change) bool {
	if b == nil {
		return false
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	select {
	case b.ch <- c:
		return true
	default:
		return false
	}
}

// Subscribe returns a read-only channel for the consumer.
func (b *Bus) Subscribe() <-chan Change {
	return b.ch
}
