package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// Logical document names
const (
	UsersDocumentName   = "pills_reminder_users"
	HistoryDocumentName = "pills_reminder_global"
	ArchiveDocumentName = "pills_reminder_archive"
)

// SchemaVersion is written into every document on save
const SchemaVersion = 1

// Document is one named JSON document as persisted by the relational backend
type Document struct {
	Name      string         `gorm:"primaryKey;size:64" json:"name"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for the Document model
func (Document) TableName() string {
	return "document"
}

// UsersDocument holds every user, their reminders and dialog state
type UsersDocument struct {
	SchemaVersion int              `json:"schema_version"`
	Users         map[string]*User `json:"users"`
}

// User returns the user with id, or nil
func (d *UsersDocument) User(id string) *User {
	if d.Users == nil {
		return nil
	}
	return d.Users[id]
}

// Normalize fills nil collections after decoding
func (d *UsersDocument) Normalize() {
	if d.Users == nil {
		d.Users = make(map[string]*User)
	}
	for id, u := range d.Users {
		if u.ID == "" {
			u.ID = id
		}
		if u.Reminders == nil {
			u.Reminders = make(map[string]*Reminder)
		}
		for rid, r := range u.Reminders {
			if r.ID == "" {
				r.ID = rid
			}
			if r.CourseNumber < 1 {
				r.CourseNumber = 1
			}
		}
	}
}

// HistoryDocument is the append-only event log
type HistoryDocument struct {
	SchemaVersion int     `json:"schema_version"`
	History       []Event `json:"history"`
}

// ArchiveDocument holds archive entries in archival order
type ArchiveDocument struct {
	SchemaVersion int            `json:"schema_version"`
	Archive       []ArchiveEntry `json:"archive"`
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
