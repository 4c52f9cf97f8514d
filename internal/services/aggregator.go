package services

import (
	"context"
	"math"
	"sort"
	"time"

	"pillsreminder/internal/models"
	"pillsreminder/internal/store"
)

const (
	day        = 24 * time.Hour
	weekWindow = 7 * day
)

// Compliance is taken/(taken+skipped) as a percentage with one decimal, or 100 with no data
func Compliance(taken, skipped int) float64 {
	total := taken + skipped
	if total == 0 {
		return 100
	}
	return models.Round1(float64(taken) / float64(total) * 100)
}

// CourseProgressFor reports how far through its duration r is at now.
// Indefinite reminders yield the zero value.
func CourseProgressFor(r *models.Reminder, now time.Time) models.CourseProgress {
	if r == nil || r.DurationDays == nil || *r.DurationDays <= 0 {
		return models.CourseProgress{}
	}
	total := *r.DurationDays
	passed := int(math.Floor(now.Sub(r.Created).Hours()/24)) + 1
	left := total - passed + 1
	if left < 0 {
		left = 0
	}
	percent := models.Round1(float64(passed) / float64(total) * 100)
	return models.CourseProgress{
		DaysPassed:      passed,
		TotalDays:       &total,
		DaysLeft:        &left,
		ProgressPercent: &percent,
	}
}

// NextDue returns the earliest upcoming slot across the given reminders: the earliest
// slot strictly later than now today, else the earliest slot tomorrow.
func NextDue(reminders []*models.Reminder, now time.Time) *time.Time {
	var today, tomorrow *time.Time
	y, m, d := now.Date()
	for _, r := range reminders {
		if !r.IsActive() {
			continue
		}
		for _, slot := range r.Times {
			t, err := time.Parse(slotLayout, slot.Time)
			if err != nil {
				continue
			}
			at := time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, now.Location())
			if at.After(now) {
				if today == nil || at.Before(*today) {
					today = &at
				}
				continue
			}
			next := at.AddDate(0, 0, 1)
			if tomorrow == nil || next.Before(*tomorrow) {
				tomorrow = &next
			}
		}
	}
	if today != nil {
		return today
	}
	return tomorrow
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// PillMetricsFor aggregates one user's events for pill. events must already be
// restricted to that user; reminders are the user's reminders.
func PillMetricsFor(events []models.Event, reminders []*models.Reminder, pill string, now time.Time) models.PillMetrics {
	var pm models.PillMetrics
	weekAgo := now.Add(-weekWindow)

	for i := range events {
		e := &events[i]
		if e.PillName != pill {
			continue
		}
		isToday := sameDate(now, e.Date)
		inWeek := !e.Date.Before(weekAgo)
		switch e.Status {
		case models.StatusTaken:
			if isToday {
				pm.TakenToday++
			}
			if inWeek {
				pm.TakenWeek++
			}
			if pm.LastTaken == nil || e.Date.After(*pm.LastTaken) {
				at := e.Date
				pm.LastTaken = &at
			}
		case models.StatusSkipped:
			if isToday {
				pm.SkippedToday++
			}
			if inWeek {
				pm.SkippedWeek++
			}
		}
	}
	pm.ComplianceWeek = Compliance(pm.TakenWeek, pm.SkippedWeek)
	pm.TotalToday = pm.TakenToday + pm.SkippedToday
	pm.TotalWeek = pm.TakenWeek + pm.SkippedWeek

	var forPill []*models.Reminder
	for _, r := range reminders {
		if r.IsActive() && r.PillName == pill {
			forPill = append(forPill, r)
		}
	}
	sortByCreated(forPill)
	pm.NextDue = NextDue(forPill, now)
	if len(forPill) > 0 {
		pm.CourseProgress = CourseProgressFor(forPill[0], now)
	}
	return pm
}

func sortByCreated(rs []*models.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Created.Equal(rs[j].Created) {
			return rs[i].Created.Before(rs[j].Created)
		}
		return rs[i].ID < rs[j].ID
	})
}

// BuildUserSnapshot computes the reporting view for u. ok is false for users
// without confirmed reminders.
func BuildUserSnapshot(u *models.User, history []models.Event, now time.Time) (snap models.UserSnapshot, ok bool) {
	snap = models.UserSnapshot{
		UserID:    u.ID,
		Username:  u.DisplayName(),
		Pills:     map[string]models.PillMetrics{},
		Reminders: map[string]*models.Reminder{},
	}
	live := u.LiveReminders()
	if len(live) == 0 {
		return snap, false
	}

	var own []models.Event
	for _, e := range history {
		if e.UserID == u.ID {
			own = append(own, e)
		}
	}

	for pill := range u.ActivePills() {
		pm := PillMetricsFor(own, live, pill, now)
		snap.Pills[pill] = pm
		snap.Stats.TakenToday += pm.TakenToday
		snap.Stats.SkippedToday += pm.SkippedToday
		snap.Stats.TakenWeek += pm.TakenWeek
		snap.Stats.SkippedWeek += pm.SkippedWeek
	}
	snap.Stats.ComplianceWeek = Compliance(snap.Stats.TakenWeek, snap.Stats.SkippedWeek)

	for _, r := range live {
		snap.Reminders[r.ID] = r.Clone()
		if r.IsActive() {
			snap.Stats.ActiveReminders++
		}
	}
	return snap, true
}

// BuildSnapshot computes the reporting view for every user with confirmed reminders
func BuildSnapshot(users *models.UsersDocument, history []models.Event, now time.Time) *models.Snapshot {
	out := &models.Snapshot{
		Users:       map[string]models.UserSnapshot{},
		LastUpdated: now,
	}
	for _, u := range users.Users {
		snap, ok := BuildUserSnapshot(u, history, now)
		if !ok {
			continue
		}
		out.Users[u.ID] = snap
		out.Total.TotalPills += len(snap.Pills)
		out.Total.TotalTakenToday += snap.Stats.TakenToday
		out.Total.TotalSkippedToday += snap.Stats.SkippedToday
	}
	out.Total.TotalUsers = len(out.Users)
	return out
}

// Aggregator recomputes snapshots from the store on every call
type Aggregator struct {
	store *store.Store
	clock func() time.Time
	loc   *time.Location
}

func NewAggregator(st *store.Store, clock func() time.Time, loc *time.Location) *Aggregator {
	return &Aggregator{store: st, clock: clock, loc: loc}
}

func (a *Aggregator) now() time.Time {
	return a.clock().In(a.loc)
}

// Snapshot computes the reporting view for all users
func (a *Aggregator) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	users, err := a.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	history, err := a.store.History(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(users, history.History, a.now()), nil
}

// UserSnapshot computes the view for one user. A user that no longer exists gets
// an empty snapshot so consumers can clear what they show.
func (a *Aggregator) UserSnapshot(ctx context.Context, userID string) (*models.UserSnapshot, error) {
	users, err := a.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	u := users.User(userID)
	if u == nil {
		return &models.UserSnapshot{
			UserID:    userID,
			Pills:     map[string]models.PillMetrics{},
			Reminders: map[string]*models.Reminder{},
		}, nil
	}
	history, err := a.store.History(ctx)
	if err != nil {
		return nil, err
	}
	snap, _ := BuildUserSnapshot(u, history.History, a.now())
	return &snap, nil
}
