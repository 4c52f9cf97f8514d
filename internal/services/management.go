package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"pillsreminder/internal/events"
	"pillsreminder/internal/models"
	"pillsreminder/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	historyRecentLimit = 7
	repeatButtonLimit  = 5
)

// CourseMailer sends a summary when a course is archived
type CourseMailer interface {
	SendCourseSummary(entry models.ArchiveEntry, username string) error
}

// Management covers everything a user does to existing reminders and data
type Management struct {
	store   *store.Store
	tracker *Tracker
	changes ChangePublisher
	mailer  CourseMailer
	clock   func() time.Time
	loc     *time.Location
	newID   func() string
	log     zerolog.Logger
}

func NewManagement(st *store.Store, tracker *Tracker, changes ChangePublisher, mailer CourseMailer, clock func() time.Time, loc *time.Location, log zerolog.Logger) *Management {
	return &Management{
		store:   st,
		tracker: tracker,
		changes: orNop(changes),
		mailer:  mailer,
		clock:   clock,
		loc:     loc,
		newID:   newReminderID,
		log:     log.With().Str("component", "management").Logger(),
	}
}

func (m *Management) now() time.Time {
	return m.clock().In(m.loc)
}

// User returns a copy of the user, or ErrUserNotFound
func (m *Management) User(ctx context.Context, userID string) (*models.User, error) {
	doc, err := m.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	u := doc.User(userID)
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Toggle flips a confirmed reminder between active and paused. Pausing clears its
// outstanding notifications.
func (m *Management) Toggle(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	var out *models.Reminder
	err := m.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return ErrReminderNotFound
		}
		r := u.Reminders[reminderID]
		if r == nil || !r.IsLive() {
			return ErrReminderNotFound
		}
		if r.IsActive() {
			r.Status = models.ReminderPaused
		} else {
			r.Status = models.ReminderActive
		}
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.IsActive() {
		m.tracker.ClearReminder(userID, reminderID)
	}
	m.changes.Publish(events.Change{Kind: events.ChangeReminderToggled, UserID: userID, ReminderID: reminderID})
	m.log.Info().Str("user_id", userID).Str("reminder_id", reminderID).Str("status", string(out.Status)).Msg("reminder toggled")
	return out, nil
}

// StopAll pauses every active reminder of the user and clears their outstanding notifications
func (m *Management) StopAll(ctx context.Context, userID string) (int, error) {
	stopped := 0
	err := m.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return errUnchanged
		}
		for _, r := range u.Reminders {
			if r.IsActive() {
				r.Status = models.ReminderPaused
				stopped++
			}
		}
		if stopped == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return 0, err
	}
	m.tracker.ClearUser(userID)
	if stopped > 0 {
		m.changes.Publish(events.Change{Kind: events.ChangeReminderToggled, UserID: userID})
		m.log.Info().Str("user_id", userID).Int("stopped", stopped).Msg("all reminders stopped")
	}
	return stopped, nil
}

// ArchivePreview is shown before a course is archived
type ArchivePreview struct {
	Reminder *models.Reminder
	Taken    int
	Skipped  int
}

func courseEvents(history []models.Event, userID string, r *models.Reminder) (match, rest []models.Event) {
	for _, e := range history {
		if e.UserID == userID && e.PillName == r.PillName && e.ReminderID == r.ID {
			match = append(match, e)
		} else {
			rest = append(rest, e)
		}
	}
	return match, rest
}

func countStatus(evs []models.Event) (taken, skipped int) {
	for _, e := range evs {
		switch e.Status {
		case models.StatusTaken:
			taken++
		case models.StatusSkipped:
			skipped++
		}
	}
	return taken, skipped
}

func (m *Management) liveReminder(ctx context.Context, userID, reminderID string) (*models.User, *models.Reminder, error) {
	doc, err := m.store.Users(ctx)
	if err != nil {
		return nil, nil, err
	}
	u := doc.User(userID)
	if u == nil {
		return nil, nil, ErrReminderNotFound
	}
	r := u.Reminders[reminderID]
	if r == nil || !r.IsLive() {
		return nil, nil, ErrReminderNotFound
	}
	return u, r, nil
}

// ArchivePreview counts the course's events without changing anything
func (m *Management) ArchivePreview(ctx context.Context, userID, reminderID string) (*ArchivePreview, error) {
	_, r, err := m.liveReminder(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	history, err := m.store.History(ctx)
	if err != nil {
		return nil, err
	}
	match, _ := courseEvents(history.History, userID, r)
	taken, skipped := countStatus(match)
	return &ArchivePreview{Reminder: r, Taken: taken, Skipped: skipped}, nil
}

// Archive moves a reminder and its events into the archive. The events leave the
// live log in the same step that captures them, so none are lost or duplicated.
func (m *Management) Archive(ctx context.Context, userID, reminderID string) (*models.ArchiveEntry, error) {
	u, r, err := m.liveReminder(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}

	var moved []models.Event
	err = m.store.UpdateHistory(ctx, func(doc *models.HistoryDocument) error {
		match, rest := courseEvents(doc.History, userID, r)
		moved = match
		if len(match) == 0 {
			return errUnchanged
		}
		doc.History = rest
		if doc.History == nil {
			doc.History = []models.Event{}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}

	now := m.now()
	entry := models.ArchiveEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		ReminderData: *r.Clone(),
		History:      append([]models.Event{}, moved...),
		StartDate:    r.Created,
		EndDate:      now,
		ArchivedAt:   now,
	}
	if len(moved) > 0 {
		entry.StartDate = moved[0].Date
		for _, e := range moved[1:] {
			if e.Date.Before(entry.StartDate) {
				entry.StartDate = e.Date
			}
		}
	}
	entry.TotalTaken, entry.TotalSkipped = countStatus(moved)

	err = m.store.UpdateArchive(ctx, func(doc *models.ArchiveDocument) error {
		doc.Archive = append(doc.Archive, entry)
		return nil
	})
	if err != nil {
		if len(moved) > 0 {
			if rerr := m.store.UpdateHistory(ctx, func(doc *models.HistoryDocument) error {
				doc.History = append(doc.History, moved...)
				return nil
			}); rerr != nil {
				m.log.Error().Err(rerr).Str("reminder_id", reminderID).Int("events", len(moved)).Msg("could not restore events after failed archive")
			}
		}
		return nil, err
	}

	err = m.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		owner := doc.User(userID)
		if owner == nil {
			return errUnchanged
		}
		delete(owner.Reminders, reminderID)
		if owner.Dialog != nil && owner.Dialog.ReminderID == reminderID {
			owner.Dialog = nil
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}
	m.tracker.ClearReminder(userID, reminderID)

	m.changes.Publish(events.Change{Kind: events.ChangeReminderArchive, UserID: userID, ReminderID: reminderID})
	m.log.Info().Str("user_id", userID).Str("reminder_id", reminderID).Str("pill", r.PillName).
		Int("taken", entry.TotalTaken).Int("skipped", entry.TotalSkipped).Msg("course archived")

	if m.mailer != nil {
		if err := m.mailer.SendCourseSummary(entry, u.DisplayName()); err != nil {
			m.log.Error().Err(err).Str("archive_id", entry.ID).Msg("Failed to send course summary email")
		}
	}
	return &entry, nil
}

// Repeat starts a new active course from an archived course #1
func (m *Management) Repeat(ctx context.Context, userID, archiveID string) (*models.Reminder, error) {
	archive, err := m.store.Archive(ctx)
	if err != nil {
		return nil, err
	}
	var src *models.ArchiveEntry
	for i := range archive.Archive {
		a := &archive.Archive[i]
		if a.ID == archiveID && a.UserID == userID {
			src = a
			break
		}
	}
	if src == nil {
		return nil, ErrArchiveNotFound
	}
	if !src.IsParentCourse() {
		return nil, ErrNotParentCourse
	}

	var out *models.Reminder
	err = m.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return ErrUserNotFound
		}
		data := src.ReminderData.Clone()
		r := &models.Reminder{
			ID:           m.newID(),
			PillName:     data.PillName,
			CourseNumber: NextCourseNumber(u, archive.Archive, userID, data.PillName),
			Dosage:       data.Dosage,
			Description:  data.Description,
			DurationDays: data.DurationDays,
			TimesPerDay:  len(data.Times),
			Times:        data.Times,
			Status:       models.ReminderActive,
			Created:      m.clock(),
		}
		u.Reminders[r.ID] = r
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.changes.Publish(events.Change{Kind: events.ChangeReminderCreated, UserID: userID, ReminderID: out.ID})
	m.log.Info().Str("user_id", userID).Str("archive_id", archiveID).Int("course", out.CourseNumber).Msg("course repeated")
	return out, nil
}

// CleanupSummary counts what a wipe touches
type CleanupSummary struct {
	History   int
	Archive   int
	Reminders int
}

// Empty reports whether there is nothing to wipe
func (s CleanupSummary) Empty() bool {
	return s.History == 0 && s.Archive == 0 && s.Reminders == 0
}

func (m *Management) summarize(ctx context.Context, userID string, matchPill func(string) bool) (*CleanupSummary, error) {
	users, err := m.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	history, err := m.store.History(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := m.store.Archive(ctx)
	if err != nil {
		return nil, err
	}
	var s CleanupSummary
	for _, e := range history.History {
		if e.UserID == userID && matchPill(e.PillName) {
			s.History++
		}
	}
	for _, a := range archive.Archive {
		if a.UserID == userID && matchPill(a.ReminderData.PillName) {
			s.Archive++
		}
	}
	if u := users.User(userID); u != nil {
		for _, r := range u.Reminders {
			if matchPill(r.PillName) {
				s.Reminders++
			}
		}
	}
	return &s, nil
}

func anyPill(string) bool { return true }

// CleanupPreview counts everything stored for the user
func (m *Management) CleanupPreview(ctx context.Context, userID string) (*CleanupSummary, error) {
	return m.summarize(ctx, userID, anyPill)
}

// CleanupAll erases the user's events, archive, reminders and profile
func (m *Management) CleanupAll(ctx context.Context, requesterID, userID string) (*CleanupSummary, error) {
	if requesterID != userID {
		return nil, ErrForbidden
	}
	return m.wipe(ctx, userID, anyPill, true)
}

// CleanupPillPreview counts what CleanupPill would remove
func (m *Management) CleanupPillPreview(ctx context.Context, requesterID, userID, pill string) (*CleanupSummary, error) {
	if requesterID != userID {
		return nil, ErrForbidden
	}
	s, err := m.summarize(ctx, userID, func(p string) bool { return p == pill })
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, ErrNothingToClean
	}
	return s, nil
}

// CleanupPill erases every event, archive entry and reminder of one pill
func (m *Management) CleanupPill(ctx context.Context, requesterID, userID, pill string) (*CleanupSummary, error) {
	if requesterID != userID {
		return nil, ErrForbidden
	}
	return m.wipe(ctx, userID, func(p string) bool { return p == pill }, false)
}

func (m *Management) wipe(ctx context.Context, userID string, matchPill func(string) bool, dropUser bool) (*CleanupSummary, error) {
	var s CleanupSummary

	err := m.store.UpdateHistory(ctx, func(doc *models.HistoryDocument) error {
		kept := make([]models.Event, 0, len(doc.History))
		for _, e := range doc.History {
			if e.UserID == userID && matchPill(e.PillName) {
				s.History++
				continue
			}
			kept = append(kept, e)
		}
		if s.History == 0 {
			return errUnchanged
		}
		doc.History = kept
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}

	err = m.store.UpdateArchive(ctx, func(doc *models.ArchiveDocument) error {
		kept := make([]models.ArchiveEntry, 0, len(doc.Archive))
		for _, a := range doc.Archive {
			if a.UserID == userID && matchPill(a.ReminderData.PillName) {
				s.Archive++
				continue
			}
			kept = append(kept, a)
		}
		if s.Archive == 0 {
			return errUnchanged
		}
		doc.Archive = kept
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}

	var removed []string
	err = m.store.UpdateUsers(ctx, func(doc *models.UsersDocument) error {
		u := doc.User(userID)
		if u == nil {
			return errUnchanged
		}
		for id, r := range u.Reminders {
			if matchPill(r.PillName) {
				removed = append(removed, id)
				delete(u.Reminders, id)
				if u.Dialog != nil && u.Dialog.ReminderID == id {
					u.Dialog = nil
				}
			}
		}
		if dropUser {
			delete(doc.Users, userID)
			return nil
		}
		if len(removed) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}
	s.Reminders = len(removed)

	if dropUser {
		m.tracker.ClearUser(userID)
	} else {
		for _, id := range removed {
			m.tracker.ClearReminder(userID, id)
		}
	}

	m.changes.Publish(events.Change{Kind: events.ChangeDataCleaned, UserID: userID})
	m.log.Info().Str("user_id", userID).Int("history", s.History).Int("archive", s.Archive).
		Int("reminders", s.Reminders).Bool("all", dropUser).Msg("user data cleaned")
	return &s, nil
}

// PillInventoryItem is one pill offered for selective cleanup
type PillInventoryItem struct {
	Name         string
	Live         bool
	ArchiveCount int
}

// PillInventory lists every pill the user has a reminder or archive entry for, by name
func (m *Management) PillInventory(ctx context.Context, requesterID, userID string) ([]PillInventoryItem, error) {
	if requesterID != userID {
		return nil, ErrForbidden
	}
	users, err := m.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := m.store.Archive(ctx)
	if err != nil {
		return nil, err
	}

	byName := map[string]*PillInventoryItem{}
	item := func(name string) *PillInventoryItem {
		if it, ok := byName[name]; ok {
			return it
		}
		it := &PillInventoryItem{Name: name}
		byName[name] = it
		return it
	}
	for _, a := range archive.Archive {
		if a.UserID == userID {
			item(a.ReminderData.PillName).ArchiveCount++
		}
	}
	if u := users.User(userID); u != nil {
		for _, r := range u.Reminders {
			if r.PillName != "" {
				item(r.PillName).Live = true
			}
		}
	}

	out := make([]PillInventoryItem, 0, len(byName))
	for _, it := range byName {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// HistoryGroup counts one pill display over the window
type HistoryGroup struct {
	Display string `json:"display"`
	Taken   int    `json:"taken"`
	Skipped int    `json:"skipped"`
}

// HistoryReport is the last week of a user's events
type HistoryReport struct {
	UserID     string         `json:"user_id"`
	Username   string         `json:"username"`
	ActiveOnly bool           `json:"active_only"`
	Groups     []HistoryGroup `json:"groups"`
	Recent     []models.Event `json:"recent"`
}

// History reports the last 7 days of events. With activeOnly, only pills that
// still have a confirmed reminder are included.
func (m *Management) History(ctx context.Context, userID string, activeOnly bool) (*HistoryReport, error) {
	users, err := m.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	history, err := m.store.History(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	weekAgo := now.Add(-weekWindow)

	rep := &HistoryReport{UserID: userID, Username: "user", ActiveOnly: activeOnly, Groups: []HistoryGroup{}, Recent: []models.Event{}}
	pills := map[string]bool{}
	if u := users.User(userID); u != nil {
		rep.Username = u.DisplayName()
		for _, r := range u.LiveReminders() {
			pills[r.PillName] = true
		}
	}

	var window []models.Event
	for _, e := range history.History {
		if e.UserID != userID || e.Date.Before(weekAgo) {
			continue
		}
		if activeOnly && !pills[e.PillName] {
			continue
		}
		window = append(window, e)
	}

	index := map[string]int{}
	for _, e := range window {
		display := e.Display()
		i, ok := index[display]
		if !ok {
			i = len(rep.Groups)
			index[display] = i
			rep.Groups = append(rep.Groups, HistoryGroup{Display: display})
		}
		switch e.Status {
		case models.StatusTaken:
			rep.Groups[i].Taken++
		case models.StatusSkipped:
			rep.Groups[i].Skipped++
		}
	}

	sort.SliceStable(window, func(i, j int) bool { return window[i].Date.After(window[j].Date) })
	if len(window) > historyRecentLimit {
		window = window[:historyRecentLimit]
	}
	rep.Recent = append(rep.Recent, window...)
	return rep, nil
}

// ArchiveReport is a user's archived courses
type ArchiveReport struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	// Entries are sorted by end date, newest first
	Entries []models.ArchiveEntry `json:"entries"`
	// Repeatable are the most recently archived course #1 entries, in archival order
	Repeatable []models.ArchiveEntry `json:"repeatable"`
}

// ArchiveList returns the user's archive
func (m *Management) ArchiveList(ctx context.Context, userID string) (*ArchiveReport, error) {
	users, err := m.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := m.store.Archive(ctx)
	if err != nil {
		return nil, err
	}

	rep := &ArchiveReport{UserID: userID, Username: "user", Entries: []models.ArchiveEntry{}, Repeatable: []models.ArchiveEntry{}}
	if u := users.User(userID); u != nil {
		rep.Username = u.DisplayName()
	}
	for _, a := range archive.Archive {
		if a.UserID != userID {
			continue
		}
		rep.Entries = append(rep.Entries, a)
		if a.IsParentCourse() {
			rep.Repeatable = append(rep.Repeatable, a)
		}
	}
	if len(rep.Repeatable) > repeatButtonLimit {
		rep.Repeatable = rep.Repeatable[len(rep.Repeatable)-repeatButtonLimit:]
	}
	sort.SliceStable(rep.Entries, func(i, j int) bool { return rep.Entries[i].EndDate.After(rep.Entries[j].EndDate) })
	return rep, nil
}

// Description returns a confirmed reminder of userID for the description view
func (m *Management) Description(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	_, r, err := m.liveReminder(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}
