package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pillsreminder/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend stores each document as one row of the document table
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend wraps an open, migrated database
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Load implements Backend
func (g *GormBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var doc models.Document
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	return doc.Payload, nil
}

// Save implements Backend
func (g *GormBackend) Save(ctx context.Context, name string, data []byte) error {
	doc := models.Document{
		Name:      name,
		Payload:   data,
		UpdatedAt: time.Now(),
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}
	return nil
}
