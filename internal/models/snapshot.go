package models

import "time"

// CourseProgress describes how far through its duration a reminder is.
// Pointer fields are nil for indefinite courses.
type CourseProgress struct {
	DaysPassed      int      `json:"days_passed"`
	TotalDays       *int     `json:"total_days"`
	DaysLeft        *int     `json:"days_left"`
	ProgressPercent *float64 `json:"progress_percent"`
}

// PillMetrics are the adherence aggregates for one (user, pill)
type PillMetrics struct {
	TakenToday     int            `json:"taken_today"`
	TakenWeek      int            `json:"taken_week"`
	SkippedToday   int            `json:"skipped_today"`
	SkippedWeek    int            `json:"skipped_week"`
	ComplianceWeek float64        `json:"compliance_week"`
	LastTaken      *time.Time     `json:"last_taken"`
	NextDue        *time.Time     `json:"next_due"`
	CourseProgress CourseProgress `json:"course_progress"`
	TotalToday     int            `json:"total_today"`
	TotalWeek      int            `json:"total_week"`
}

// UserStats sums pill metrics for one user
type UserStats struct {
	TakenToday      int     `json:"taken_today"`
	SkippedToday    int     `json:"skipped_today"`
	TakenWeek       int     `json:"taken_week"`
	SkippedWeek     int     `json:"skipped_week"`
	ComplianceWeek  float64 `json:"compliance_week"`
	ActiveReminders int     `json:"active_reminders"`
}

// UserSnapshot is the reporting view of one user
type UserSnapshot struct {
	UserID    string                 `json:"user_id"`
	Username  string                 `json:"username"`
	Pills     map[string]PillMetrics `json:"pills"`
	Stats     UserStats              `json:"stats"`
	Reminders map[string]*Reminder   `json:"reminders"`
}

// Totals aggregates across users
type Totals struct {
	TotalUsers        int `json:"total_users"`
	TotalPills        int `json:"total_pills"`
	TotalTakenToday   int `json:"total_taken_today"`
	TotalSkippedToday int `json:"total_skipped_today"`
}

// Snapshot is what the reporting layer reads
type Snapshot struct {
	Users       map[string]UserSnapshot `json:"users"`
	Total       Totals                  `json:"total"`
	LastUpdated time.Time               `json:"last_updated"`
}
