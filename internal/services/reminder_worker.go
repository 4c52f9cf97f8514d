package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"pillsreminder/internal/models"
	"pillsreminder/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// everyMinute fires at second zero of every minute
const everyMinute = "0 * * * * *"

// ReminderWorker is the due-time scanner. Once a minute it dispatches every active
// slot whose "HH:MM" equals the current minute and is not already outstanding.
type ReminderWorker struct {
	store    *store.Store
	tracker  *Tracker
	notifier Notifier
	chatID   int64
	loc      *time.Location
	clock    func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	handled map[handledSlot]string // slot at its time -> date it was dispatched or acknowledged
}

// handledSlot includes the slot's time so an edited slot is due again the same day
type handledSlot struct {
	key  models.OutstandingKey
	time string
}

func NewReminderWorker(st *store.Store, tracker *Tracker, notifier Notifier, chatID int64, loc *time.Location, clock func() time.Time, log zerolog.Logger) *ReminderWorker {
	return &ReminderWorker{
		store:    st,
		tracker:  tracker,
		notifier: notifier,
		chatID:   chatID,
		loc:      loc,
		clock:    clock,
		log:      log.With().Str("component", "scheduler").Logger(),
		handled:  make(map[handledSlot]string),
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Reconcile marks every slot that already has an Event today as handled, so a
// restart does not re-dispatch doses that were acknowledged before it. The
// event's recorded slot time is part of the mark, so a slot moved since then
// is still dispatched at its new time.
func (w *ReminderWorker) Reconcile(ctx context.Context, now time.Time) (int, error) {
	now = now.In(w.loc)
	history, err := w.store.History(ctx)
	if err != nil {
		return 0, err
	}
	today := dateKey(now)

	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, e := range history.History {
		if !sameDate(now, e.Date) {
			continue
		}
		hs := handledSlot{
			key:  models.OutstandingKey{UserID: e.UserID, ReminderID: e.ReminderID, SlotIndex: e.TimeIndex},
			time: e.TimeTaken,
		}
		if w.handled[hs] != today {
			w.handled[hs] = today
			n++
		}
	}
	w.log.Info().Int("slots", n).Msg("startup reconciliation done")
	return n, nil
}

func (w *ReminderWorker) handledToday(hs handledSlot, today string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, d := range w.handled {
		if d != today {
			delete(w.handled, k)
		}
	}
	return w.handled[hs] == today
}

func (w *ReminderWorker) markHandled(hs handledSlot, today string) {
	w.mu.Lock()
	w.handled[hs] = today
	w.mu.Unlock()
}

type dueSlot struct {
	user     *models.User
	reminder *models.Reminder
	slot     int
}

// dueAt lists the active slots matching hhmm, in a stable order
func dueAt(doc *models.UsersDocument, hhmm string) []dueSlot {
	ids := make([]string, 0, len(doc.Users))
	for id := range doc.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []dueSlot
	for _, id := range ids {
		u := doc.Users[id]
		for _, r := range u.SortedReminders() {
			if !r.IsActive() {
				continue
			}
			for i, slot := range r.Times {
				if slot.Time == hhmm {
					out = append(out, dueSlot{user: u, reminder: r, slot: i})
				}
			}
		}
	}
	return out
}

// Tick runs one scan for the minute containing now and returns how many
// notifications were delivered.
func (w *ReminderWorker) Tick(ctx context.Context, now time.Time) (int, error) {
	now = now.In(w.loc)
	hhmm := now.Format(slotLayout)
	today := dateKey(now)

	doc, err := w.store.Users(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, due := range dueAt(doc, hhmm) {
		key := models.OutstandingKey{UserID: due.user.ID, ReminderID: due.reminder.ID, SlotIndex: due.slot}
		hs := handledSlot{key: key, time: hhmm}
		if w.handledToday(hs, today) {
			continue
		}
		o := models.Outstanding{
			Key:          key,
			DispatchedAt: now,
			Username:     due.user.DisplayName(),
			PillName:     due.reminder.PillName,
			Dosage:       due.reminder.Dosage,
			CourseNumber: due.reminder.CourseNumber,
			SlotTime:     due.reminder.SlotTime(due.slot),
		}
		if !w.tracker.Add(ctx, o, w.resend) {
			continue
		}
		w.markHandled(hs, today)

		text := DueMessage(o.Username, due.reminder, due.slot, now)
		if _, err := w.notifier.Deliver(ctx, w.chatID, text, SlotKeyboard(key.UserID, key.ReminderID, key.SlotIndex)); err != nil {
			// The nag loop retries on its next wake
			w.log.Error().Err(err).Str("key", key.String()).Msg("Failed to send reminder")
			continue
		}
		sent++
		w.log.Info().Str("user_id", key.UserID).Str("pill", o.PillName).Str("slot", o.SlotTime).Msg("reminder sent")
	}
	return sent, nil
}

func (w *ReminderWorker) resend(ctx context.Context, o models.Outstanding) error {
	_, err := w.notifier.Deliver(ctx, w.chatID, RenotifyMessage(o), SlotKeyboard(o.Key.UserID, o.Key.ReminderID, o.Key.SlotIndex))
	return err
}

// Run reconciles once and then ticks every minute until ctx is canceled.
// Tick failures are logged and the schedule continues.
func (w *ReminderWorker) Run(ctx context.Context) error {
	if _, err := w.Reconcile(ctx, w.clock()); err != nil {
		w.log.Error().Err(err).Msg("startup reconciliation failed")
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(w.loc))
	_, err := c.AddFunc(everyMinute, func() {
		if _, err := w.Tick(ctx, w.clock()); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("reminder scan failed")
		}
	})
	if err != nil {
		return err
	}

	w.log.Info().Str("location", w.loc.String()).Msg("reminder scheduler starting")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("reminder scheduler stopping")
	return ctx.Err()
}
