package services

import (
	"testing"

	"pillsreminder/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCourseSummary(t *testing.T) {
	entry := models.ArchiveEntry{
		ReminderData: models.Reminder{PillName: "Vitamin D", Dosage: "1000 IU", CourseNumber: 2},
		StartDate:    baseTime.Add(-9 * day),
		EndDate:      baseTime,
		TotalTaken:   3,
		TotalSkipped: 1,
	}
	subject, body := CourseSummary(entry, "alice")
	assert.Equal(t, "Course finished: Vitamin D (1000 IU) [Course #2]", subject)
	assert.Equal(t, "@alice archived Vitamin D (1000 IU) [Course #2].\nPeriod: Mar 1, 2025 - Mar 10, 2025\nTaken: 3, skipped: 1 (75.0% compliance)", body)

	entry.TotalTaken, entry.TotalSkipped = 0, 0
	_, body = CourseSummary(entry, "alice")
	assert.Contains(t, body, "(no doses recorded)")
}
