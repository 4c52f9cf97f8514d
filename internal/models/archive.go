package models

import "time"

// ArchiveEntry is an immutable record of a retired reminder and its events
type ArchiveEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ReminderData Reminder  `json:"reminder_data"`
	History      []Event   `json:"history"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TotalTaken   int       `json:"total_taken"`
	TotalSkipped int       `json:"total_skipped"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// IsParentCourse reports whether the archived reminder was course #1
func (a *ArchiveEntry) IsParentCourse() bool {
	return a.ReminderData.CourseNumber <= 1
}

// Compliance returns the taken percentage and whether any events were recorded
func (a *ArchiveEntry) Compliance() (float64, bool) {
	total := a.TotalTaken + a.TotalSkipped
	if total == 0 {
		return 0, false
	}
	return Round1(float64(a.TotalTaken) / float64(total) * 100), true
}
