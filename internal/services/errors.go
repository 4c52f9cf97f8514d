package services

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrArchiveNotFound  = errors.New("archive entry not found")
	ErrNotParentCourse  = errors.New("only course #1 can be repeated")
	ErrForbidden        = errors.New("cannot modify another user's data")
	ErrNoActiveDialog   = errors.New("no setup in progress")
	ErrNothingToClean   = errors.New("nothing to clean up")
)

// errUnchanged aborts a document update without saving and without failing the caller
var errUnchanged = errors.New("document unchanged")

// ValidationError is a rejected user input. Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
