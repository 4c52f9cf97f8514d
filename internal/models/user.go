package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReminderStatus represents where a reminder is in its lifecycle
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending" // draft written by the setup dialog
	ReminderActive  ReminderStatus = "active"
	ReminderPaused  ReminderStatus = "paused"
)

// MaxTimesPerDay is the upper bound on slots per reminder
const MaxTimesPerDay = 6

// TimeSlot is one time-of-day entry within a reminder, stored as "HH:MM"
type TimeSlot struct {
	Time string `json:"time"`
}

// Reminder represents a configured recurring dose schedule for one pill/course
type Reminder struct {
	ID           string         `json:"id"`
	PillName     string         `json:"pill_name"`
	CourseNumber int            `json:"course_number"`
	Dosage       string         `json:"dosage,omitempty"`
	Description  string         `json:"description,omitempty"`
	DurationDays *int           `json:"duration_days,omitempty"`
	TimesPerDay  int            `json:"times_per_day,omitempty"`
	Times        []TimeSlot     `json:"times"`
	Status       ReminderStatus `json:"status"`
	Created      time.Time      `json:"created"`
}

// IsActive reports whether the scanner and aggregator should see the reminder
func (r *Reminder) IsActive() bool {
	return r.Status == ReminderActive
}

// IsLive reports whether the reminder has been confirmed (active or paused)
func (r *Reminder) IsLive() bool {
	return r.Status == ReminderActive || r.Status == ReminderPaused
}

// SlotTimes returns the slot strings in order
func (r *Reminder) SlotTimes() []string {
	out := make([]string, 0, len(r.Times))
	for _, t := range r.Times {
		out = append(out, t.Time)
	}
	return out
}

// SlotTime returns the slot string at index, or "??:??" when out of range
func (r *Reminder) SlotTime(index int) string {
	if index < 0 || index >= len(r.Times) {
		return "??:??"
	}
	return r.Times[index].Time
}

// Display renders "name (dosage) [Course #n]"
func (r *Reminder) Display() string {
	return PillDisplay(r.PillName, r.Dosage, r.CourseNumber)
}

// Clone returns a deep copy of the reminder
func (r *Reminder) Clone() *Reminder {
	c := *r
	c.Times = append([]TimeSlot(nil), r.Times...)
	if r.DurationDays != nil {
		d := *r.DurationDays
		c.DurationDays = &d
	}
	return &c
}

// PillDisplay formats a pill label the same way everywhere it is shown
func PillDisplay(pillName, dosage string, courseNumber int) string {
	var b strings.Builder
	b.WriteString(pillName)
	if dosage != "" {
		fmt.Fprintf(&b, " (%s)", dosage)
	}
	if courseNumber > 1 {
		fmt.Fprintf(&b, " [Course #%d]", courseNumber)
	}
	return b.String()
}

// User represents a chat user who owns reminders
type User struct {
	ID        string               `json:"id"`
	Username  string               `json:"username"`
	FirstName string               `json:"first_name,omitempty"`
	ChatID    int64                `json:"chat_id"`
	Reminders map[string]*Reminder `json:"reminders"`
	Dialog    *DialogState         `json:"dialog,omitempty"`
}

// DisplayName returns the handle used in notifications
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "user"
}

// SortedReminders returns the user's reminders ordered by creation time, then id
func (u *User) SortedReminders() []*Reminder {
	out := make([]*Reminder, 0, len(u.Reminders))
	for _, r := range u.Reminders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LiveReminders returns confirmed reminders (active or paused) in creation order
func (u *User) LiveReminders() []*Reminder {
	var out []*Reminder
	for _, r := range u.SortedReminders() {
		if r.IsLive() {
			out = append(out, r)
		}
	}
	return out
}

// ActivePills returns the set of pill names with an active reminder
func (u *User) ActivePills() map[string]bool {
	pills := make(map[string]bool)
	for _, r := range u.Reminders {
		if r.IsActive() && r.PillName != "" {
			pills[r.PillName] = true
		}
	}
	return pills
}

// Profile carries the chat identity fields refreshed on every /setup
type Profile struct {
	UserID    string
	Username  string
	FirstName string
	ChatID    int64
}
