package models

import "time"

// EventStatus is the outcome recorded for a dose
type EventStatus string

const (
	StatusTaken   EventStatus = "taken"
	StatusSkipped EventStatus = "skipped"
)

// Valid reports whether s is a known status
func (s EventStatus) Valid() bool {
	return s == StatusTaken || s == StatusSkipped
}

// Event is an append-only adherence log entry. Pill fields are a snapshot of the
// reminder at acknowledgment time.
type Event struct {
	Date         time.Time   `json:"date"`
	Status       EventStatus `json:"status"`
	UserID       string      `json:"user_id"`
	ReminderID   string      `json:"reminder_id"`
	PillName     string      `json:"pill_name"`
	Dosage       string      `json:"dosage,omitempty"`
	CourseNumber int         `json:"course_number"`
	TimeIndex    int         `json:"time_index"`
	TimeTaken    string      `json:"time_taken"`
	ActionBy     string      `json:"action_by"`
}

// Display renders the pill label captured on the event
func (e *Event) Display() string {
	return PillDisplay(e.PillName, e.Dosage, e.CourseNumber)
}
