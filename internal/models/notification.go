package models

import (
	"fmt"
	"time"
)

// OutstandingKey identifies one dispatched dose slot
type OutstandingKey struct {
	UserID     string `json:"user_id"`
	ReminderID string `json:"reminder_id"`
	SlotIndex  int    `json:"slot_index"`
}

func (k OutstandingKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.UserID, k.ReminderID, k.SlotIndex)
}

// Outstanding is a dispatched but unacknowledged notification, held in memory only
type Outstanding struct {
	Key          OutstandingKey `json:"key"`
	DispatchedAt time.Time      `json:"dispatched_at"`
	Username     string         `json:"username"`
	PillName     string         `json:"pill_name"`
	Dosage       string         `json:"dosage,omitempty"`
	CourseNumber int            `json:"course_number"`
	SlotTime     string         `json:"slot_time"`
	Renotified   int            `json:"renotified"`
}

// Display renders the pill label captured at dispatch
func (o *Outstanding) Display() string {
	return PillDisplay(o.PillName, o.Dosage, o.CourseNumber)
}

// Button is one inline action attached to a message
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Keyboard is a grid of inline buttons, one slice per row
type Keyboard [][]Button

// Row appends a single-button row
func (k Keyboard) Row(text, data string) Keyboard {
	return append(k, []Button{{Text: text, Data: data}})
}
