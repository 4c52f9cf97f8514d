package services

import (
	"testing"
	"time"

	"pillsreminder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompliance(t *testing.T) {
	assert.Equal(t, 75.0, Compliance(3, 1))
	assert.Equal(t, 100.0, Compliance(0, 0))
	assert.Equal(t, 0.0, Compliance(0, 4))
	assert.Equal(t, 66.7, Compliance(2, 1))
}

func TestCourseProgressFor(t *testing.T) {
	r := &models.Reminder{DurationDays: intPtr(10), Created: baseTime.Add(-9 * day)}
	p := CourseProgressFor(r, baseTime)
	assert.Equal(t, 10, p.DaysPassed)
	require.NotNil(t, p.DaysLeft)
	assert.Equal(t, 1, *p.DaysLeft)
	require.NotNil(t, p.ProgressPercent)
	assert.Equal(t, 100.0, *p.ProgressPercent)

	past := CourseProgressFor(r, baseTime.Add(5*day))
	assert.Equal(t, 0, *past.DaysLeft, "never negative")

	first := CourseProgressFor(&models.Reminder{DurationDays: intPtr(4), Created: baseTime}, baseTime.Add(time.Hour))
	assert.Equal(t, 1, first.DaysPassed)
	assert.Equal(t, 25.0, *first.ProgressPercent)

	assert.Equal(t, models.CourseProgress{}, CourseProgressFor(&models.Reminder{Created: baseTime}, baseTime))
}

func TestNextDue(t *testing.T) {
	rs := []*models.Reminder{
		{Status: models.ReminderActive, Times: []models.TimeSlot{{Time: "20:00"}, {Time: "08:00"}}},
		{Status: models.ReminderPaused, Times: []models.TimeSlot{{Time: "12:00"}}},
	}

	next := NextDue(rs, baseTime)
	require.NotNil(t, next)
	assert.Equal(t, baseTime.Add(12*time.Hour), *next, "08:00 itself is not strictly later")

	next = NextDue(rs, baseTime.Add(13*time.Hour))
	require.NotNil(t, next)
	assert.Equal(t, baseTime.Add(day), *next, "earliest slot tomorrow")

	assert.Nil(t, NextDue(nil, baseTime))
}

func TestBuildUserSnapshot(t *testing.T) {
	u := &models.User{ID: "1", Username: "alice", Reminders: map[string]*models.Reminder{
		"r1": {ID: "r1", PillName: "A", CourseNumber: 1, Status: models.ReminderActive, DurationDays: intPtr(10),
			Created: baseTime.Add(-9 * day), Times: []models.TimeSlot{{Time: "20:00"}}},
		"r2": {ID: "r2", PillName: "A", CourseNumber: 2, Status: models.ReminderActive, DurationDays: intPtr(5),
			Created: baseTime.Add(-day), Times: []models.TimeSlot{{Time: "09:00"}}},
		"r3": {ID: "r3", PillName: "B", CourseNumber: 1, Status: models.ReminderPaused, Times: []models.TimeSlot{{Time: "10:00"}}},
		"d":  {ID: "d", PillName: "C", Status: models.ReminderPending},
	}}
	ev := func(at time.Time, status models.EventStatus, pill string) models.Event {
		return models.Event{Date: at, Status: status, UserID: "1", PillName: pill}
	}
	history := []models.Event{
		ev(baseTime.Add(-time.Hour), models.StatusTaken, "A"),
		ev(baseTime.Add(-2*day), models.StatusTaken, "A"),
		ev(baseTime.Add(-3*day), models.StatusTaken, "A"),
		ev(baseTime.Add(-4*day), models.StatusSkipped, "A"),
		ev(baseTime.Add(-8*day), models.StatusSkipped, "A"),
		ev(baseTime.Add(-time.Minute), models.StatusTaken, "B"),
		{Date: baseTime, Status: models.StatusTaken, UserID: "2", PillName: "A"},
	}

	snap, ok := BuildUserSnapshot(u, history, baseTime)
	require.True(t, ok)
	assert.Equal(t, "alice", snap.Username)
	require.Len(t, snap.Pills, 1, "only pills with an active reminder")

	a := snap.Pills["A"]
	assert.Equal(t, 1, a.TakenToday)
	assert.Equal(t, 3, a.TakenWeek)
	assert.Equal(t, 1, a.SkippedWeek)
	assert.Equal(t, 75.0, a.ComplianceWeek)
	assert.Equal(t, 1, a.TotalToday)
	assert.Equal(t, 4, a.TotalWeek)
	require.NotNil(t, a.LastTaken)
	assert.Equal(t, baseTime.Add(-time.Hour), *a.LastTaken)
	require.NotNil(t, a.NextDue)
	assert.Equal(t, baseTime.Add(time.Hour), *a.NextDue)
	assert.Equal(t, 10, *a.CourseProgress.TotalDays, "progress follows the earliest reminder")

	assert.Equal(t, 2, snap.Stats.ActiveReminders)
	assert.Equal(t, 75.0, snap.Stats.ComplianceWeek)
	assert.Len(t, snap.Reminders, 3, "drafts are excluded")

	_, ok = BuildUserSnapshot(&models.User{ID: "3", Reminders: map[string]*models.Reminder{"d": {Status: models.ReminderPending}}}, nil, baseTime)
	assert.False(t, ok)
}

func TestAggregator_Snapshot(t *testing.T) {
	f := newFixture(t)
	f.aliceWithVitamin(t)
	f.seedUser(t, &models.User{ID: "2", Username: "bob"})
	f.seedEvents(t,
		models.Event{Date: baseTime.Add(-time.Minute), Status: models.StatusTaken, UserID: "1", ReminderID: "r1", PillName: "Vitamin D"},
		models.Event{Date: baseTime.Add(-2 * time.Minute), Status: models.StatusSkipped, UserID: "1", ReminderID: "r1", PillName: "Vitamin D"},
	)

	snap, err := f.aggregate.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Total.TotalUsers, "users without reminders are left out")
	assert.Equal(t, 1, snap.Total.TotalPills)
	assert.Equal(t, 1, snap.Total.TotalTakenToday)
	assert.Equal(t, 1, snap.Total.TotalSkippedToday)
	assert.Equal(t, baseTime, snap.LastUpdated)

	one, err := f.aggregate.UserSnapshot(f.ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, one.Pills["Vitamin D"].ComplianceWeek)

	missing, err := f.aggregate.UserSnapshot(f.ctx, "404")
	require.NoError(t, err)
	assert.Equal(t, "404", missing.UserID)
	assert.Empty(t, missing.Pills)
}
