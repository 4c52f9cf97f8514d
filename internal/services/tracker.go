package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"pillsreminder/internal/models"

	"github.com/rs/zerolog"
)

// ResendFunc re-delivers an outstanding notification
type ResendFunc func(ctx context.Context, o models.Outstanding) error

type trackedEntry struct {
	info models.Outstanding
	done chan struct{}
}

// Tracker holds dispatched but unacknowledged notifications, at most one per key,
// and nags each of them every interval until it is cleared. State is in memory only.
type Tracker struct {
	mu       sync.Mutex
	entries  map[models.OutstandingKey]*trackedEntry
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// TrackerOption customizes a Tracker
type TrackerOption func(*Tracker)

// WithAfter replaces time.After for the nag wait
func WithAfter(after func(time.Duration) <-chan time.Time) TrackerOption {
	return func(t *Tracker) { t.after = after }
}

func NewTracker(interval time.Duration, log zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		entries:  make(map[models.OutstandingKey]*trackedEntry),
		interval: interval,
		after:    time.After,
		log:      log.With().Str("component", "tracker").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add records o and starts its nag loop. It returns false, and does nothing, when
// the key is already outstanding.
func (t *Tracker) Add(ctx context.Context, o models.Outstanding, resend ResendFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[o.Key]; exists {
		return false
	}
	e := &trackedEntry{info: o, done: make(chan struct{})}
	t.entries[o.Key] = e

	t.wg.Add(1)
	go t.nag(ctx, e, resend)
	return true
}

func (t *Tracker) nag(ctx context.Context, e *trackedEntry, resend ResendFunc) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-t.after(t.interval):
		}

		t.mu.Lock()
		if t.entries[e.info.Key] != e {
			t.mu.Unlock()
			return
		}
		e.info.Renotified++
		info := e.info
		t.mu.Unlock()

		if err := resend(ctx, info); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Error().Err(err).Str("key", info.Key.String()).Msg("re-notification failed")
			continue
		}
		t.log.Debug().Str("key", info.Key.String()).Int("renotified", info.Renotified).Msg("re-notified")
	}
}

// Has reports whether key is outstanding
func (t *Tracker) Has(key models.OutstandingKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Clear removes key and stops its nag loop. Clearing an absent key is a no-op.
func (t *Tracker) Clear(key models.OutstandingKey) bool {
	return t.clearWhere(func(k models.OutstandingKey) bool { return k == key }) > 0
}

// ClearReminder removes every slot of one reminder
func (t *Tracker) ClearReminder(userID, reminderID string) int {
	return t.clearWhere(func(k models.OutstandingKey) bool {
		return k.UserID == userID && k.ReminderID == reminderID
	})
}

// ClearUser removes everything outstanding for userID
func (t *Tracker) ClearUser(userID string) int {
	return t.clearWhere(func(k models.OutstandingKey) bool { return k.UserID == userID })
}

func (t *Tracker) clearWhere(match func(models.OutstandingKey) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.entries {
		if match(k) {
			delete(t.entries, k)
			close(e.done)
			n++
		}
	}
	return n
}

// List returns the outstanding notifications, oldest first
func (t *Tracker) List() []models.Outstanding {
	t.mu.Lock()
	out := make([]models.Outstanding, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.info)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DispatchedAt.Equal(out[j].DispatchedAt) {
			return out[i].DispatchedAt.Before(out[j].DispatchedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Len is the number of outstanding notifications
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Wait blocks until every nag loop has exited. Loops exit when cleared or
// when the context passed to Add is canceled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
