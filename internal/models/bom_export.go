package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Export statuses.
const (
	ExportPending   = "pending"
	ExportRunning   = "running"
	ExportCompleted = "completed"
	ExportFailed    = "failed"
)

// BOMExport is an asynchronously rendered CSV bill of materials for one
// snapshot version.
type BOMExport struct {
	ID          uuid.UUID  `gorm:"primaryKey" json:"id"`
	ProjectID   uuid.UUID  `gorm:"index;not null" json:"project_id" validate:"required"`
	Version     int        `gorm:"not null;default:0" json:"version"`
	GroupID     int        `gorm:"not null;default:0" json:"group_id"`
	ShowAll     bool       `gorm:"not null" json:"show_all"`
	Status      string     `gorm:"size:32;index;not null" json:"status" validate:"required,oneof=pending running completed failed"`
	CSV         string     `gorm:"column:csv;type:text" json:"-"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (BOMExport) TableName() string { return "bom_exports" }

func (e *BOMExport) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
