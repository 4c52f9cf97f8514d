// Package callback encodes and decodes inline-button payloads.
package callback

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDataLen is the Bot API limit on callback_data
const MaxDataLen = 64

// Action names the operation behind a button
type Action string

const (
	Taken            Action = "taken"
	Skip             Action = "skip"
	Description      Action = "description"
	SaveReminder     Action = "save_reminder"
	CancelReminder   Action = "cancel_reminder"
	NewReminder      Action = "new_reminder"
	EditReminder     Action = "edit_reminder"
	ToggleReminder   Action = "toggle_reminder"
	ArchiveReminder  Action = "archive_reminder"
	ConfirmArchive   Action = "confirm_archive"
	CancelArchive    Action = "cancel_archive"
	RepeatCourse     Action = "repeat_course"
	CleanupAll       Action = "cleanup_all"
	CleanupSelective Action = "cleanup_selective"
	CleanupPill      Action = "cleanup_pill"
	ConfirmCleanup   Action = "confirm_cleanup_pill"
	CleanupCancel    Action = "cleanup_cancel"
)

// Data is a decoded payload. Only the fields relevant to Action are set.
type Data struct {
	Action     Action
	UserID     string
	ReminderID string
	SlotIndex  int
	ArchiveID  string
	PillName   string
}

// Encode renders d in the wire format
func (d Data) Encode() string {
	switch d.Action {
	case Taken, Skip:
		return fmt.Sprintf("%s_%s_%s_%d", d.Action, d.UserID, d.ReminderID, d.SlotIndex)
	case Description:
		return fmt.Sprintf("%s_%s_%s", d.Action, d.UserID, d.ReminderID)
	case SaveReminder, CancelReminder, EditReminder, ToggleReminder, ArchiveReminder, ConfirmArchive, CancelArchive:
		return fmt.Sprintf("%s_%s", d.Action, d.ReminderID)
	case RepeatCourse:
		return fmt.Sprintf("%s_%s", d.Action, d.ArchiveID)
	case CleanupAll, CleanupSelective:
		return fmt.Sprintf("%s_%s", d.Action, d.UserID)
	case CleanupPill, ConfirmCleanup:
		return fmt.Sprintf("%s_%s_%s", d.Action, d.UserID, d.PillName)
	default:
		return string(d.Action)
	}
}

// Fits reports whether the encoded payload is within the Bot API limit
func (d Data) Fits() bool {
	return len(d.Encode()) <= MaxDataLen
}

// Longer prefixes first so "confirm_cleanup_pill_" is not read as something shorter
var prefixed = []Action{
	ConfirmCleanup,
	CleanupSelective,
	CleanupPill,
	CleanupAll,
	SaveReminder,
	CancelReminder,
	EditReminder,
	ToggleReminder,
	ArchiveReminder,
	ConfirmArchive,
	CancelArchive,
	RepeatCourse,
	Description,
	Taken,
	Skip,
}

// Parse decodes a callback payload
func Parse(s string) (Data, error) {
	switch Action(s) {
	case NewReminder, CleanupCancel:
		return Data{Action: Action(s)}, nil
	}

	for _, a := range prefixed {
		prefix := string(a) + "_"
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		rest := strings.TrimPrefix(s, prefix)
		if rest == "" {
			return Data{}, fmt.Errorf("callback %q: empty payload", s)
		}
		d := Data{Action: a}
		switch a {
		case Taken, Skip:
			parts := strings.SplitN(rest, "_", 3)
			if len(parts) != 3 {
				return Data{}, fmt.Errorf("callback %q: want user_reminder_slot", s)
			}
			idx, err := strconv.Atoi(parts[2])
			if err != nil || idx < 0 {
				return Data{}, fmt.Errorf("callback %q: bad slot index", s)
			}
			d.UserID, d.ReminderID, d.SlotIndex = parts[0], parts[1], idx
		case Description:
			parts := strings.SplitN(rest, "_", 2)
			if len(parts) != 2 {
				return Data{}, fmt.Errorf("callback %q: want user_reminder", s)
			}
			d.UserID, d.ReminderID = parts[0], parts[1]
		case RepeatCourse:
			d.ArchiveID = rest
		case CleanupAll, CleanupSelective:
			d.UserID = rest
		case CleanupPill, ConfirmCleanup:
			parts := strings.SplitN(rest, "_", 2)
			if len(parts) != 2 || parts[1] == "" {
				return Data{}, fmt.Errorf("callback %q: want user_pill", s)
			}
			d.UserID, d.PillName = parts[0], parts[1]
		default:
			d.ReminderID = rest
		}
		return d, nil
	}
	return Data{}, fmt.Errorf("unknown callback %q", s)
}
