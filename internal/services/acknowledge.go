package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pillsreminder/internal/events"
	"pillsreminder/internal/models"
	"pillsreminder/internal/store"

	"github.com/rs/zerolog"
)

// AckRequest is one taken/skipped action. ChatID/MessageID identify the
// notification to rewrite; a zero MessageID skips the rewrite.
type AckRequest struct {
	UserID     string
	ReminderID string
	SlotIndex  int
	Status     models.EventStatus
	ActorID    string
	ChatID     int64
	MessageID  int64
}

// AckResult reports what was recorded
type AckResult struct {
	Event models.Event
	// Duplicate is set when de-duplication suppressed a second event for the same slot and day
	Duplicate bool
}

// Acknowledger records taken/skipped events and clears outstanding notifications
type Acknowledger struct {
	store    *store.Store
	tracker  *Tracker
	notifier Notifier
	changes  ChangePublisher
	clock    func() time.Time
	loc      *time.Location
	dedupe   bool
	log      zerolog.Logger
}

func NewAcknowledger(st *store.Store, tracker *Tracker, notifier Notifier, changes ChangePublisher, clock func() time.Time, loc *time.Location, dedupe bool, log zerolog.Logger) *Acknowledger {
	return &Acknowledger{
		store:    st,
		tracker:  tracker,
		notifier: notifier,
		changes:  orNop(changes),
		clock:    clock,
		loc:      loc,
		dedupe:   dedupe,
		log:      log.With().Str("component", "acknowledge").Logger(),
	}
}

// Acknowledge appends one Event built from the reminder's current state. A reminder
// that no longer exists fails with ErrReminderNotFound and only clears the tracker.
func (a *Acknowledger) Acknowledge(ctx context.Context, req AckRequest) (*AckResult, error) {
	if !req.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", req.Status))
	}
	key := models.OutstandingKey{UserID: req.UserID, ReminderID: req.ReminderID, SlotIndex: req.SlotIndex}

	users, err := a.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	u := users.User(req.UserID)
	if u == nil {
		a.tracker.Clear(key)
		return nil, ErrUserNotFound
	}
	r := u.Reminders[req.ReminderID]
	if r == nil {
		a.tracker.Clear(key)
		return nil, ErrReminderNotFound
	}

	now := a.clock().In(a.loc)
	ev := models.Event{
		Date:         now,
		Status:       req.Status,
		UserID:       req.UserID,
		ReminderID:   req.ReminderID,
		PillName:     r.PillName,
		Dosage:       r.Dosage,
		CourseNumber: r.CourseNumber,
		TimeIndex:    req.SlotIndex,
		TimeTaken:    r.SlotTime(req.SlotIndex),
		ActionBy:     req.ActorID,
	}

	res := &AckResult{Event: ev}
	err = a.store.UpdateHistory(ctx, func(doc *models.HistoryDocument) error {
		if a.dedupe && hasSameDayEvent(doc.History, key, now) {
			res.Duplicate = true
			return errUnchanged
		}
		doc.History = append(doc.History, ev)
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}
	a.tracker.Clear(key)

	if !res.Duplicate {
		a.changes.Publish(events.Change{Kind: events.ChangeEventRecorded, UserID: req.UserID, ReminderID: req.ReminderID})
	}
	a.log.Info().
		Str("user_id", req.UserID).
		Str("pill", ev.PillName).
		Int("course", ev.CourseNumber).
		Str("slot", ev.TimeTaken).
		Str("status", string(ev.Status)).
		Str("action_by", req.ActorID).
		Bool("duplicate", res.Duplicate).
		Msg("dose acknowledged")

	a.notify(ctx, users, u, req, ev)
	return res, nil
}

// notify tells the owner privately and rewrites the channel message. Failures are logged only.
func (a *Acknowledger) notify(ctx context.Context, users *models.UsersDocument, owner *models.User, req AckRequest, ev models.Event) {
	if owner.ChatID != 0 {
		actorName := "someone"
		if actor := users.User(req.ActorID); actor != nil {
			actorName = actor.DisplayName()
		}
		if _, err := a.notifier.Deliver(ctx, owner.ChatID, AckPrivateMessage(ev, actorName), nil); err != nil {
			a.log.Error().Err(err).Str("user_id", owner.ID).Msg("Failed to send private confirmation")
		}
	}
	if req.MessageID != 0 {
		if err := a.notifier.Update(ctx, req.ChatID, req.MessageID, AckChannelMessage(ev)); err != nil {
			a.log.Error().Err(err).Int64("message_id", req.MessageID).Msg("Failed to update notification")
		}
	}
}

func hasSameDayEvent(history []models.Event, key models.OutstandingKey, now time.Time) bool {
	for i := range history {
		e := &history[i]
		if e.UserID == key.UserID && e.ReminderID == key.ReminderID && e.TimeIndex == key.SlotIndex && sameDate(now, e.Date) {
			return true
		}
	}
	return false
}
