package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pillsreminder/internal/events"
	"pillsreminder/internal/models"
	"pillsreminder/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	slotLayout = "15:04"
	// SkipInput leaves an optional field empty
	SkipInput = "-"
)

// ParseSlot accepts a 24-hour "HH:MM" or "H:MM" string and returns it as "HH:MM"
func ParseSlot(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(slotLayout, s)
	if err != nil {
		return "", invalid("time", "use the 24-hour HH:MM format, e.g. 08:30")
	}
	canonical := t.Format(slotLayout)
	if canonical != s && canonical != "0"+s {
		return "", invalid("time", "use the 24-hour HH:MM format, e.g. 08:30")
	}
	return canonical, nil
}

// ParseSlotList parses a comma separated list of slots, ignoring spaces
func ParseSlotList(s string) ([]models.TimeSlot, error) {
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), ",")
	if len(parts) > models.MaxTimesPerDay {
		return nil, invalid("times", fmt.Sprintf("at most %d times per day", models.MaxTimesPerDay))
	}
	out := make([]models.TimeSlot, 0, len(parts))
	for _, p := range parts {
		slot, err := ParseSlot(p)
		if err != nil {
			return nil, invalid("times", "use HH:MM,HH:MM,...")
		}
		out = append(out, models.TimeSlot{Time: slot})
	}
	return out, nil
}

// NextCourseNumber is 1 plus the highest course #1 found among the user's live
// reminders and archive entries for pill. Repeats are never counted, so the result
// is 1 or 2.
func NextCourseNumber(u *models.User, archive []models.ArchiveEntry, userID, pill string) int {
	highest := 0
	if u != nil {
		for _, r := range u.Reminders {
			if r.IsLive() && r.PillName == pill && r.CourseNumber == 1 {
				highest = 1
			}
		}
	}
	for i := range archive {
		a := &archive[i]
		if a.UserID == userID && a.ReminderData.PillName == pill && a.ReminderData.CourseNumber == 1 {
			highest = max(highest, a.ReminderData.CourseNumber)
		}
	}
	return highest + 1
}

// DialogResult is the outcome of one accepted dialog input
type DialogResult struct {
	// State is the new position, nil once the flow has finished
	State    *models.DialogState
	Reminder *models.Reminder
}

// Dialog drives the setup and edit-times conversations
type Dialog struct {
	store   *store.Store
	changes ChangePublisher
	clock   func() time.Time
	newID   func() string
	log     zerolog.Logger
}

func NewDialog(st *store.Store, changes ChangePublisher, clock func() time.Time, log zerolog.Logger) *Dialog {
	return &Dialog{
		store:   st,
		changes: orNop(changes),
		clock:   clock,
		newID:   newReminderID,
		log:     log.With().Str("component", "dialog").Logger(),
	}
}

// newReminderID is time-ordered so ids sort by creation
func newReminderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	// 32 hex characters keep callback payloads well inside the 64-byte limit
	return strings.ReplaceAll(id.String(), "-", "")
}

// Start refreshes the user's profile and begins a new setup. A draft left by an
// earlier unfinished setup stays in place.
func (d *Dialog) Start(ctx context.Context, p models.Profile) (*models.DialogState, error) {
	state := &models.DialogState{Step: models.StepPillName, ReminderID: d.newID()}
	err := d.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(p.UserID)
		if u == nil {
			u = &models.User{ID: p.UserID, Reminders: map[string]*models.Reminder{}}
			doc.Users[p.UserID] = u
		}
		u.Username = p.Username
		u.FirstName = p.FirstName
		u.ChatID = p.ChatID
		s := *state
		u.Dialog = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("user_id", p.UserID).Str("reminder_id", state.ReminderID).Msg("setup started")
	return state, nil
}

// Handle applies one free-text input to the user's dialog. Invalid input returns a
// *ValidationError and leaves the stored state untouched.
func (d *Dialog) Handle(ctx context.Context, userID, text string) (*DialogResult, error) {
	text = strings.TrimSpace(text)

	// Read before entering the users actor so no update nests another document
	archive, err := d.store.Archive(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result  DialogResult
		missing bool
	)
	err = d.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil || u.Dialog == nil {
			return ErrNoActiveDialog
		}
		state := *u.Dialog
		if err := state.Validate(); err != nil {
			u.Dialog = nil
			missing = true
			d.log.Warn().Err(err).Str("user_id", userID).Msg("dropping unreachable dialog state")
			return nil
		}

		if state.Step == models.StepPillName {
			if text == "" {
				return invalid("pill_name", "enter the name of the pill")
			}
			r := &models.Reminder{
				ID:           state.ReminderID,
				PillName:     text,
				CourseNumber: NextCourseNumber(u, archive.Archive, userID, text),
				Status:       models.ReminderPending,
				Times:        []models.TimeSlot{},
				Created:      d.clock(),
			}
			u.Reminders[r.ID] = r
			u.Dialog = &models.DialogState{Step: models.StepDosage, ReminderID: r.ID}
			result = DialogResult{State: u.Dialog, Reminder: r.Clone()}
			return nil
		}

		r := u.Reminders[state.ReminderID]
		if r == nil {
			u.Dialog = nil
			missing = true
			return nil
		}

		next, err := applyStep(state, r, text)
		if err != nil {
			return err
		}
		u.Dialog = next
		result = DialogResult{State: next, Reminder: r.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, ErrReminderNotFound
	}

	if result.State == nil {
		d.changes.Publish(events.Change{Kind: events.ChangeReminderUpdated, UserID: userID, ReminderID: result.Reminder.ID})
		d.log.Info().Str("user_id", userID).Str("reminder_id", result.Reminder.ID).Strs("times", result.Reminder.SlotTimes()).Msg("times updated")
	}
	return &result, nil
}

// applyStep validates text for state, mutates r and returns the next state.
// r is only mutated when the input is accepted.
func applyStep(state models.DialogState, r *models.Reminder, text string) (*models.DialogState, error) {
	at := func(step models.DialogStep) *models.DialogState {
		return &models.DialogState{Step: step, ReminderID: state.ReminderID}
	}

	switch state.Step {
	case models.StepDosage:
		r.Dosage = optional(text)
		return at(models.StepDescription), nil

	case models.StepDescription:
		r.Description = optional(text)
		return at(models.StepDurationDays), nil

	case models.StepDurationDays:
		if text == SkipInput {
			r.DurationDays = nil
			return at(models.StepTimesPerDay), nil
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, invalid("duration_days", "enter a number or '-' for an indefinite course")
		}
		if n <= 0 {
			return nil, invalid("duration_days", "the duration must be a positive number")
		}
		r.DurationDays = &n
		return at(models.StepTimesPerDay), nil

	case models.StepTimesPerDay:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > models.MaxTimesPerDay {
			return nil, invalid("times_per_day", fmt.Sprintf("enter a number from 1 to %d", models.MaxTimesPerDay))
		}
		r.TimesPerDay = n
		r.Times = []models.TimeSlot{}
		return &models.DialogState{Step: models.StepTime, ReminderID: state.ReminderID, SlotIndex: 0}, nil

	case models.StepTime:
		slot, err := ParseSlot(text)
		if err != nil {
			return nil, err
		}
		r.Times = append(r.Times, models.TimeSlot{Time: slot})
		if len(r.Times) < r.TimesPerDay {
			return &models.DialogState{Step: models.StepTime, ReminderID: state.ReminderID, SlotIndex: len(r.Times)}, nil
		}
		return at(models.StepConfirm), nil

	case models.StepConfirm:
		return nil, invalid("confirm", "use the buttons to save or cancel the reminder")

	case models.StepEditTimes:
		slots, err := ParseSlotList(text)
		if err != nil {
			return nil, err
		}
		r.Times = slots
		r.TimesPerDay = len(slots)
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled dialog step %q", state.Step)
}

func optional(text string) string {
	if text == SkipInput {
		return ""
	}
	return text
}

// Confirm promotes the draft to an active reminder and ends the dialog.
// Confirming an already active reminder returns it unchanged.
func (d *Dialog) Confirm(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	var (
		out     *models.Reminder
		already bool
	)
	err := d.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return ErrUserNotFound
		}
		r := u.Reminders[reminderID]
		if r == nil {
			return ErrReminderNotFound
		}
		if r.IsLive() {
			already = true
			out = r.Clone()
			return errUnchanged
		}
		if r.PillName == "" || len(r.Times) == 0 {
			return invalid("confirm", "the reminder is not complete yet")
		}
		r.Status = models.ReminderActive
		if u.Dialog != nil && u.Dialog.ReminderID == reminderID {
			u.Dialog = nil
		}
		out = r.Clone()
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}
	if !already {
		d.changes.Publish(events.Change{Kind: events.ChangeReminderCreated, UserID: userID, ReminderID: reminderID})
		d.log.Info().Str("user_id", userID).Str("reminder_id", reminderID).Str("pill", out.PillName).Int("course", out.CourseNumber).Msg("reminder activated")
	}
	return out, nil
}

// Cancel discards a pending draft and ends the dialog. Confirmed reminders are never removed here.
func (d *Dialog) Cancel(ctx context.Context, userID, reminderID string) error {
	err := d.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return errUnchanged
		}
		if r := u.Reminders[reminderID]; r != nil && r.Status == models.ReminderPending {
			delete(u.Reminders, reminderID)
		}
		if u.Dialog != nil && u.Dialog.ReminderID == reminderID {
			u.Dialog = nil
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return err
	}
	return nil
}

// StartEditTimes points the dialog at an existing reminder's slots
func (d *Dialog) StartEditTimes(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	var out *models.Reminder
	err := d.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return ErrReminderNotFound
		}
		r := u.Reminders[reminderID]
		if r == nil || !r.IsLive() {
			return ErrReminderNotFound
		}
		u.Dialog = &models.DialogState{Step: models.StepEditTimes, ReminderID: reminderID}
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// State returns the user's current dialog state, or nil
func (d *Dialog) State(ctx context.Context, userID string) (*models.DialogState, error) {
	doc, err := d.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	if u := doc.User(userID); u != nil && u.Dialog != nil {
		s := *u.Dialog
		return &s, nil
	}
	return nil, nil
}
