package models

import "fmt"

// DialogStep names a state of the setup conversation
type DialogStep string

const (
	StepPillName     DialogStep = "pill_name"
	StepDosage       DialogStep = "dosage"
	StepDescription  DialogStep = "description"
	StepDurationDays DialogStep = "duration_days"
	StepTimesPerDay  DialogStep = "times_per_day"
	StepTime         DialogStep = "time"
	StepConfirm      DialogStep = "confirm"
	StepEditTimes    DialogStep = "edit_times"
)

// DialogState is the per-user position in the setup or edit-times flow.
// ReminderID names the draft (or, for StepEditTimes, the reminder being edited).
// SlotIndex is only meaningful for StepTime and counts slots already entered.
type DialogState struct {
	Step       DialogStep `json:"step"`
	ReminderID string     `json:"reminder_id"`
	SlotIndex  int        `json:"slot_index,omitempty"`
}

// Validate rejects states that cannot be reached through valid transitions
func (s *DialogState) Validate() error {
	if s.ReminderID == "" {
		return fmt.Errorf("dialog state %q without reminder id", s.Step)
	}
	switch s.Step {
	case StepPillName, StepDosage, StepDescription, StepDurationDays, StepTimesPerDay, StepConfirm, StepEditTimes:
		if s.SlotIndex != 0 {
			return fmt.Errorf("dialog state %q carries slot index %d", s.Step, s.SlotIndex)
		}
	case StepTime:
		if s.SlotIndex < 0 || s.SlotIndex >= MaxTimesPerDay {
			return fmt.Errorf("slot index %d out of range", s.SlotIndex)
		}
	default:
		return fmt.Errorf("unknown dialog step %q", s.Step)
	}
	return nil
}

// Label is the human-readable step name, e.g. "time_2"
func (s *DialogState) Label() string {
	if s.Step == StepTime {
		return fmt.Sprintf("time_%d", s.SlotIndex+1)
	}
	return string(s.Step)
}
