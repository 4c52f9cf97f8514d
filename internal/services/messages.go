package services

import (
	"fmt"
	"strings"
	"time"

	"pillsreminder/internal/callback"
	"pillsreminder/internal/models"
)

// SlotKeyboard is the taken / skip / description keyboard attached to a due notification
func SlotKeyboard(userID, reminderID string, slot int) models.Keyboard {
	return models.Keyboard{}.
		Row("✅ Taken", callback.Data{Action: callback.Taken, UserID: userID, ReminderID: reminderID, SlotIndex: slot}.Encode()).
		Row("❌ Skip", callback.Data{Action: callback.Skip, UserID: userID, ReminderID: reminderID, SlotIndex: slot}.Encode()).
		Row("📝 Description", callback.Data{Action: callback.Description, UserID: userID, ReminderID: reminderID}.Encode())
}

// DueMessage is the first notification for a slot
func DueMessage(username string, r *models.Reminder, slot int, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s Time to take %s! 💊\n", username, r.Display())
	fmt.Fprintf(&b, "⏰ Dose at %s", r.SlotTime(slot))
	if p := CourseProgressFor(r, now); p.TotalDays != nil {
		fmt.Fprintf(&b, "\n📅 Day %d/%d (%d left)", p.DaysPassed, *p.TotalDays, *p.DaysLeft)
	}
	return b.String()
}

// RenotifyMessage repeats an unacknowledged notification
func RenotifyMessage(o models.Outstanding) string {
	return fmt.Sprintf("⏰ @%s Reminder: don't forget %s!\n⏰ Dose at %s", o.Username, o.Display(), o.SlotTime)
}

// AckPrivateMessage confirms an acknowledgment to the owning user
func AckPrivateMessage(e models.Event, actorName string) string {
	var text string
	if e.Status == models.StatusTaken {
		text = fmt.Sprintf("✅ Great! %s taken at %s!", e.Display(), e.TimeTaken)
	} else {
		text = fmt.Sprintf("❌ %s skipped at %s. Recorded in history.", e.Display(), e.TimeTaken)
	}
	if e.ActionBy != e.UserID {
		text += fmt.Sprintf("\n(marked by @%s)", actorName)
	}
	return text
}

// AckChannelMessage replaces the dispatched notification once acknowledged
func AckChannelMessage(e models.Event) string {
	if e.Status == models.StatusTaken {
		return fmt.Sprintf("✅ %s taken at %s!", e.Display(), e.TimeTaken)
	}
	return fmt.Sprintf("❌ %s skipped at %s", e.Display(), e.TimeTaken)
}
