package services

import (
	"fmt"
	"html"
	"strings"

	"pillsreminder/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const summaryDateLayout = "Jan 2, 2006"

type EmailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	to        string
}

// NewEmailService sends course summaries to a single caregiver address
func NewEmailService(apiKey, fromEmail, fromName, to string) *EmailService {
	return &EmailService{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		to:        to,
	}
}

// CourseSummary renders the subject and plain body of a course summary email
func CourseSummary(entry models.ArchiveEntry, username string) (subject, body string) {
	r := entry.ReminderData
	subject = fmt.Sprintf("Course finished: %s", r.Display())
	compliance := "no doses recorded"
	if pct, ok := entry.Compliance(); ok {
		compliance = fmt.Sprintf("%.1f%% compliance", pct)
	}
	body = fmt.Sprintf("@%s archived %s.\nPeriod: %s - %s\nTaken: %d, skipped: %d (%s)",
		username, r.Display(),
		entry.StartDate.Format(summaryDateLayout), entry.EndDate.Format(summaryDateLayout),
		entry.TotalTaken, entry.TotalSkipped, compliance)
	return subject, body
}

// SendCourseSummary emails the caregiver when a course is archived
func (s *EmailService) SendCourseSummary(entry models.ArchiveEntry, username string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", s.to)
	subject, plainContent := CourseSummary(entry, username)
	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(plainContent), "\n", "<br>") + "</p>"

	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)
	response, err := s.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send course summary to %s: %d", s.to, response.StatusCode)
	}
	return nil
}
