package bot

import (
	"fmt"
	"strings"
	"time"

	"pillsreminder/internal/callback"
	"pillsreminder/internal/models"
	"pillsreminder/internal/services"
	"pillsreminder/internal/telegram"
)

const dateLayout = "02.01.2006"

// Commands is the menu registered with setMyCommands
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "start", Description: "Start using the bot"},
		{Command: "setup", Description: "Set up a new reminder"},
		{Command: "manage", Description: "Manage reminders"},
		{Command: "status", Description: "Show all reminders"},
		{Command: "history", Description: "History of active pills"},
		{Command: "archive", Description: "Archive of finished courses"},
		{Command: "cleanup", Description: "Clean up history and data"},
		{Command: "stop", Description: "Stop all reminders"},
		{Command: "help", Description: "Help"},
	}
}

const commandList = "/setup - create a new reminder\n" +
	"/manage - manage reminders\n" +
	"/status - show all reminders\n" +
	"/history - history of active pills\n" +
	"/archive - archive of finished courses\n" +
	"/cleanup - clean up history and data\n" +
	"/stop - stop all reminders\n"

func startText(name string) string {
	return fmt.Sprintf("Hi, %s! 👋\n\n", name) +
		"I remind you to take your pills.\n\n" +
		"🔧 Commands:\n" + commandList +
		"/help - detailed help\n\n" +
		"💡 Set things up here, in private messages.\n" +
		"📢 Reminders arrive in the shared chat with buttons."
}

func helpText() string {
	return "🆘 Pills Reminder help\n\n" +
		"🔧 Commands:\n" + commandList + "\n" +
		"💡 How it works:\n" +
		"1️⃣ Set up reminders here, in private messages\n" +
		"2️⃣ You can have several reminders for different pills\n" +
		fmt.Sprintf("3️⃣ Each pill can have up to %d doses a day\n", models.MaxTimesPerDay) +
		"4️⃣ At each dose time a reminder with course progress arrives in the shared chat\n" +
		"5️⃣ Press ✅ Taken, ❌ Skip or 📝 Description under it\n" +
		"6️⃣ Unanswered reminders repeat every 30 minutes\n" +
		"7️⃣ Manage reminders with /manage\n\n" +
		"🔄 Only a first course (Course #1) can be repeated from the archive"
}

const noDialogText = "Use /setup to create a reminder or /manage to manage existing ones"

// stepPrompt asks for the input the dialog is waiting for
func stepPrompt(state *models.DialogState, r *models.Reminder) string {
	switch state.Step {
	case models.StepPillName:
		return "🆕 New reminder\n\nStep 1 of 7: enter the pill name\nFor example: Vitamin D, Omega-3, Magnesium"
	case models.StepDosage:
		text := fmt.Sprintf("✅ Pill '%s' saved!", r.PillName)
		if r.CourseNumber > 1 {
			text += fmt.Sprintf(" (Course #%d)", r.CourseNumber)
		}
		return text + "\n\nStep 2 of 7: enter the dosage\nFor example: 1000 IU, 2 tablets, 1 capsule\nOr send '-' to skip"
	case models.StepDescription:
		return "✅ Dosage saved!\n\nStep 3 of 7: what is it for?\nFor example: immunity, heart, prescribed by doctor\nOr send '-' to skip"
	case models.StepDurationDays:
		return "✅ Description saved!\n\nStep 4 of 7: course length in days\nFor example: 30, 60, 90\nOr send '-' for an indefinite course"
	case models.StepTimesPerDay:
		return fmt.Sprintf("✅ Duration saved!\n\nStep 5 of 7: how many times a day?\nEnter a number from 1 to %d", models.MaxTimesPerDay)
	case models.StepTime:
		if state.SlotIndex == 0 {
			return fmt.Sprintf("✅ Doses per day: %d\n\nStep 6 of 7: dose times\n\nTime of dose 1 (HH:MM):", r.TimesPerDay)
		}
		return fmt.Sprintf("✅ Time of dose %d saved!\n\nTime of dose %d (HH:MM):", state.SlotIndex, state.SlotIndex+1)
	case models.StepEditTimes:
		return fmt.Sprintf("⏰ Changing dose times\n\nPill: %s\nCurrent times: %s\n\nEnter the new times separated by commas (HH:MM,HH:MM):",
			r.PillName, timesText(r))
	}
	return ""
}

func timesText(r *models.Reminder) string {
	if len(r.Times) == 0 {
		return "not set"
	}
	return strings.Join(r.SlotTimes(), ", ")
}

func durationText(r *models.Reminder) string {
	if r.DurationDays == nil {
		return "indefinite"
	}
	return fmt.Sprintf("%d days", *r.DurationDays)
}

func reminderDetails(b *strings.Builder, r *models.Reminder) {
	fmt.Fprintf(b, "💊 Pill: %s", r.PillName)
	if r.CourseNumber > 1 {
		fmt.Fprintf(b, " (Course #%d)", r.CourseNumber)
	}
	b.WriteString("\n")
	if r.Dosage != "" {
		fmt.Fprintf(b, "📏 Dosage: %s\n", r.Dosage)
	}
	if r.Description != "" {
		fmt.Fprintf(b, "💡 Description: %s\n", r.Description)
	}
	fmt.Fprintf(b, "📅 Duration: %s\n", durationText(r))
	fmt.Fprintf(b, "⏰ Dose times: %s\n", timesText(r))
}

// confirmationText is step 7, shown with save/cancel buttons
func confirmationText(r *models.Reminder, username string) string {
	var b strings.Builder
	b.WriteString("✅ All set!\n\n📋 Check the settings:\n")
	reminderDetails(&b, r)
	fmt.Fprintf(&b, "👤 User: @%s\n\n", username)
	b.WriteString("📢 Reminders will arrive in the shared chat with answer buttons")
	return b.String()
}

func confirmationKeyboard(reminderID string) models.Keyboard {
	return models.Keyboard{}.
		Row("✅ Save reminder", callback.Data{Action: callback.SaveReminder, ReminderID: reminderID}.Encode()).
		Row("❌ Cancel", callback.Data{Action: callback.CancelReminder, ReminderID: reminderID}.Encode())
}

func savedText(r *models.Reminder) string {
	var b strings.Builder
	b.WriteString("✅ Reminder created!\n\n")
	reminderDetails(&b, r)
	b.WriteString("\n📢 Reminders will arrive in the shared chat every day at these times")
	return b.String()
}

func timesUpdatedText(r *models.Reminder) string {
	return fmt.Sprintf("✅ Dose times updated!\n\n💊 Pill: %s\n⏰ Times: %s", r.PillName, timesText(r))
}

func statusIcon(r *models.Reminder) string {
	if r.IsActive() {
		return "🟢"
	}
	return "🔴"
}

func manageText(live []*models.Reminder) string {
	var b strings.Builder
	b.WriteString("⚙️ Manage reminders:\n\n")
	for _, r := range live {
		fmt.Fprintf(&b, "%s %s\n", statusIcon(r), r.Display())
		fmt.Fprintf(&b, "    ⏰ Times: %s\n", timesText(r))
		fmt.Fprintf(&b, "    📅 Duration: %s\n", durationText(r))
		if r.Description != "" {
			fmt.Fprintf(&b, "    💡 %s\n", r.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func manageKeyboard(live []*models.Reminder) models.Keyboard {
	kb := models.Keyboard{}
	for _, r := range live {
		toggle := "⏸️ Pause"
		if !r.IsActive() {
			toggle = "▶️ Resume"
		}
		kb = kb.
			Row("⏰ Times "+r.PillName, callback.Data{Action: callback.EditReminder, ReminderID: r.ID}.Encode()).
			Row(toggle+" "+r.PillName, callback.Data{Action: callback.ToggleReminder, ReminderID: r.ID}.Encode()).
			Row("✅ Finish course "+r.PillName, callback.Data{Action: callback.ArchiveReminder, ReminderID: r.ID}.Encode())
	}
	return kb.Row("🆕 Create a new reminder", callback.Data{Action: callback.NewReminder}.Encode())
}

const noRemindersText = "❌ You have no reminders yet\n\nUse /setup to create one"

func progressLine(r *models.Reminder, now time.Time) string {
	p := services.CourseProgressFor(r, now)
	if p.TotalDays == nil {
		return "📅 Duration: indefinite"
	}
	return fmt.Sprintf("📅 Progress: %d/%d days (%d left)", p.DaysPassed, *p.TotalDays, *p.DaysLeft)
}

func statusText(live []*models.Reminder, now time.Time) string {
	var b strings.Builder
	b.WriteString("📋 Your reminders:\n\n")
	active, paused := 0, 0
	for _, r := range live {
		fmt.Fprintf(&b, "%s %s\n", statusIcon(r), r.Display())
		fmt.Fprintf(&b, "   ⏰ Times: %s\n", timesText(r))
		fmt.Fprintf(&b, "   %s\n", progressLine(r, now))
		if r.Description != "" {
			fmt.Fprintf(&b, "   💡 Description: %s\n", r.Description)
		}
		if r.IsActive() {
			active++
			b.WriteString("   📊 Status: active\n\n")
		} else {
			paused++
			b.WriteString("   📊 Status: paused\n\n")
		}
	}
	fmt.Fprintf(&b, "📊 Total: %d active, %d paused\n", active, paused)
	b.WriteString("📢 Reminders arrive in the shared chat\n\n")
	b.WriteString("💡 Use /archive to see finished courses")
	return b.String()
}

func descriptionText(r *models.Reminder, now time.Time) string {
	var b strings.Builder
	b.WriteString("📝 Pill description\n\n")
	fmt.Fprintf(&b, "💊 Name: %s\n", r.PillName)
	if r.Dosage != "" {
		fmt.Fprintf(&b, "📏 Dosage: %s\n", r.Dosage)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "💡 What for: %s\n", r.Description)
	} else {
		b.WriteString("💡 No description\n")
	}
	fmt.Fprintf(&b, "⏰ Dose times: %s\n", timesText(r))
	if r.CourseNumber > 1 {
		fmt.Fprintf(&b, "📚 Course: #%d\n", r.CourseNumber)
	}
	b.WriteString(progressLine(r, now))
	return b.String()
}

// descriptionKeyboard answers any slot of the reminder from the description message
func descriptionKeyboard(userID string, r *models.Reminder) models.Keyboard {
	kb := models.Keyboard{}
	for i, slot := range r.Times {
		kb = kb.
			Row("✅ Taken at "+slot.Time, callback.Data{Action: callback.Taken, UserID: userID, ReminderID: r.ID, SlotIndex: i}.Encode()).
			Row("❌ Skip "+slot.Time, callback.Data{Action: callback.Skip, UserID: userID, ReminderID: r.ID, SlotIndex: i}.Encode())
	}
	return kb
}

func archivePreviewText(p *services.ArchivePreview) string {
	var b strings.Builder
	b.WriteString("🗄️ Finish course\n\nDo you really want to finish this course?\n\n")
	fmt.Fprintf(&b, "💊 %s\n", p.Reminder.Display())
	fmt.Fprintf(&b, "⏰ Times: %s\n\n", timesText(p.Reminder))
	fmt.Fprintf(&b, "📊 Statistics:\n✅ Taken: %d\n❌ Skipped: %d\n\n", p.Taken, p.Skipped)
	b.WriteString("📝 The course moves to the archive with its full history")
	return b.String()
}

func archivePreviewKeyboard(reminderID string) models.Keyboard {
	return models.Keyboard{}.
		Row("✅ Yes, finish the course", callback.Data{Action: callback.ConfirmArchive, ReminderID: reminderID}.Encode()).
		Row("❌ Cancel", callback.Data{Action: callback.CancelArchive, ReminderID: reminderID}.Encode())
}

func archivedText(e *models.ArchiveEntry) string {
	var b strings.Builder
	b.WriteString("✅ Course finished and moved to the archive\n\n")
	fmt.Fprintf(&b, "💊 %s\n\n", e.ReminderData.Display())
	fmt.Fprintf(&b, "📊 Final statistics:\n✅ Taken: %d\n❌ Skipped: %d\n\n", e.TotalTaken, e.TotalSkipped)
	fmt.Fprintf(&b, "📅 Period: %s - %s\n\n", e.StartDate.Format(dateLayout), e.EndDate.Format(dateLayout))
	b.WriteString("🗄️ Use /archive to see the archive and repeat courses")
	return b.String()
}

const noMoreRemindersText = "You have no more active reminders.\nUse /setup to create a new one."

func repeatedText(r *models.Reminder) string {
	return fmt.Sprintf("🔄 Course repeated!\n\n💊 %s\n⏰ Times: %s\n📅 Duration: %s\n\n📢 Reminders are active again",
		r.Display(), timesText(r), durationText(r))
}

func historyText(rep *services.HistoryReport) string {
	if len(rep.Groups) == 0 {
		return fmt.Sprintf("📊 @%s has no history for the last 7 days", rep.Username)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 History of @%s for the last 7 days:\n\n", rep.Username)
	for _, g := range rep.Groups {
		fmt.Fprintf(&b, "💊 %s\n   ✅ Taken: %d\n   ❌ Skipped: %d\n   📈 Compliance: %.1f%%\n\n",
			g.Display, g.Taken, g.Skipped, services.Compliance(g.Taken, g.Skipped))
	}
	b.WriteString("📝 Recent entries:\n")
	for _, e := range rep.Recent {
		icon := "✅"
		if e.Status == models.StatusSkipped {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s %s %s - %s\n", icon, e.Date.Format("02.01 15:04"), e.Display(), e.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func archiveText(rep *services.ArchiveReport) string {
	if len(rep.Entries) == 0 {
		return fmt.Sprintf("🗄️ @%s has no finished courses yet", rep.Username)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗄️ Archive of @%s:\n\n", rep.Username)
	for _, e := range rep.Entries {
		fmt.Fprintf(&b, "💊 %s\n", e.ReminderData.Display())
		fmt.Fprintf(&b, "   📅 %s - %s\n", e.StartDate.Format(dateLayout), e.EndDate.Format(dateLayout))
		fmt.Fprintf(&b, "   ✅ Taken: %d, ❌ Skipped: %d", e.TotalTaken, e.TotalSkipped)
		if pct, ok := e.Compliance(); ok {
			fmt.Fprintf(&b, " (%.1f%%)", pct)
		}
		b.WriteString("\n\n")
	}
	if len(rep.Repeatable) > 0 {
		b.WriteString("🔄 Use the buttons below to repeat a course")
	}
	return strings.TrimRight(b.String(), "\n")
}

func repeatKeyboard(rep *services.ArchiveReport) models.Keyboard {
	kb := models.Keyboard{}
	for _, e := range rep.Repeatable {
		kb = kb.Row("🔄 Repeat "+e.ReminderData.PillName, callback.Data{Action: callback.RepeatCourse, ArchiveID: e.ID}.Encode())
	}
	return kb
}

func cleanupText(s *services.CleanupSummary) string {
	var b strings.Builder
	b.WriteString("🧹 Clean up history and data\n\n⚠️ WARNING! This cannot be undone!\n\nWhat will be deleted:\n")
	if s.History > 0 {
		fmt.Fprintf(&b, "📊 Active history: %d entries\n", s.History)
	}
	if s.Archive > 0 {
		fmt.Fprintf(&b, "🗄️ Archive: %d courses\n", s.Archive)
	}
	if s.Reminders > 0 {
		fmt.Fprintf(&b, "⚙️ Reminders: %d\n", s.Reminders)
	}
	b.WriteString("\nChoose what to clean up:")
	return b.String()
}

func cleanupKeyboard(userID string, s *services.CleanupSummary) models.Keyboard {
	kb := models.Keyboard{}.Row("🧹 Clean up EVERYTHING", callback.Data{Action: callback.CleanupAll, UserID: userID}.Encode())
	if s.Archive > 0 || s.Reminders > 0 {
		kb = kb.Row("📋 Selective cleanup", callback.Data{Action: callback.CleanupSelective, UserID: userID}.Encode())
	}
	return kb.Row("❌ Cancel", callback.Data{Action: callback.CleanupCancel}.Encode())
}

const (
	nothingToCleanText = "❌ You have no data to clean up"
	cleanupCanceled    = "❌ Cleanup canceled"
	forbiddenText      = "❌ You can only clean up your own data"
)

func cleanedText(s *services.CleanupSummary, pill string) string {
	var b strings.Builder
	if pill == "" {
		b.WriteString("✅ All your data has been deleted\n\n")
	} else {
		fmt.Fprintf(&b, "✅ Data for '%s' has been deleted\n\n", pill)
	}
	fmt.Fprintf(&b, "📊 History entries: %d\n🗄️ Archived courses: %d\n⚙️ Reminders: %d", s.History, s.Archive, s.Reminders)
	return b.String()
}

// inventoryKeyboard offers one button per pill. Pills whose name does not fit in
// callback data are left out.
func inventoryKeyboard(userID string, items []services.PillInventoryItem) (models.Keyboard, int) {
	kb := models.Keyboard{}
	omitted := 0
	for _, it := range items {
		data := callback.Data{Action: callback.CleanupPill, UserID: userID, PillName: it.Name}
		confirm := callback.Data{Action: callback.ConfirmCleanup, UserID: userID, PillName: it.Name}
		if !data.Fits() || !confirm.Fits() {
			omitted++
			continue
		}
		label := "🗑️ " + it.Name
		if it.Live {
			label += " (active)"
		}
		if it.ArchiveCount > 0 {
			label += fmt.Sprintf(" [%d archived]", it.ArchiveCount)
		}
		kb = kb.Row(label, data.Encode())
	}
	return kb.Row("❌ Cancel", callback.Data{Action: callback.CleanupCancel}.Encode()), omitted
}

func inventoryText(omitted int) string {
	text := "📋 Selective cleanup\n\nChoose the pill whose data should be deleted:"
	if omitted > 0 {
		text += fmt.Sprintf("\n\n⚠️ %d pill(s) have names too long for a button; use 🧹 Clean up EVERYTHING for those", omitted)
	}
	return text
}

func pillCleanupText(pill string, s *services.CleanupSummary) string {
	return fmt.Sprintf("🗑️ Delete all data for '%s'?\n\n📊 History entries: %d\n🗄️ Archived courses: %d\n⚙️ Reminders: %d\n\n⚠️ This cannot be undone!",
		pill, s.History, s.Archive, s.Reminders)
}

func pillCleanupKeyboard(userID, pill string) models.Keyboard {
	return models.Keyboard{}.
		Row("✅ Yes, delete", callback.Data{Action: callback.ConfirmCleanup, UserID: userID, PillName: pill}.Encode()).
		Row("❌ Cancel", callback.Data{Action: callback.CleanupCancel}.Encode())
}

const (
	reminderNotFoundText = "❌ Reminder not found"
	archiveNotFoundText  = "❌ Archived course not found"
	notParentCourseText  = "❌ Only a first course (Course #1) can be repeated"
	draftGoneText        = "❌ The reminder being set up no longer exists. Use /setup to start again."
	canceledText         = "❌ Reminder creation canceled\n\nUse /setup to create a new reminder"
	genericErrorText     = "❌ Something went wrong, please try again"
)
