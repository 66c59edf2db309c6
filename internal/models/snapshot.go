package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/canvas"
)

// ProjectSnapshot stores one saved version of a project's drawing. Exactly
// one version per project is current.
type ProjectSnapshot struct {
	ID            uuid.UUID      `gorm:"primaryKey" json:"id"`
	ProjectID     uuid.UUID      `gorm:"index;not null" json:"project_id" validate:"required"`
	Version       int            `gorm:"not null" json:"version" validate:"gte=1"`
	Entities      datatypes.JSON `json:"entities"`
	Groups        datatypes.JSON `gorm:"column:group_list" json:"groups"`
	ActiveGroupID int            `gorm:"not null;default:1" json:"active_group_id"`
	ShowAllGroups bool           `gorm:"not null;default:false" json:"show_all_groups"`
	Checksum      string         `gorm:"size:64;not null" json:"checksum"`
	IsCurrent     bool           `gorm:"not null;default:false;index" json:"is_current"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (s *ProjectSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NewProjectSnapshot serializes snap for storage. Version, checksum and the
// current flag are set by the repository.
func NewProjectSnapshot(projectID uuid.UUID, snap canvas.Snapshot) (*ProjectSnapshot, error) {
	if snap.Entities == nil {
		snap.Entities = []canvas.Entity{}
	}
	if snap.Groups == nil {
		snap.Groups = canvas.DefaultGroups()
	}
	entities, err := json.Marshal(snap.Entities)
	if err != nil {
		return nil, err
	}
	groups, err := json.Marshal(snap.Groups)
	if err != nil {
		return nil, err
	}
	return &ProjectSnapshot{
		ProjectID:     projectID,
		Entities:      entities,
		Groups:        groups,
		ActiveGroupID: snap.ActiveGroupID,
		ShowAllGroups: snap.ShowAllGroups,
	}, nil
}

// Snapshot decodes the stored version back into the editor's form.
func (s *ProjectSnapshot) Snapshot() (*canvas.Snapshot, error) {
	raw, err := json.Marshal(struct {
		Entities      json.RawMessage `json:"entities"`
		Groups        json.RawMessage `json:"groups"`
		ActiveGroupID int             `json:"activeGroupId"`
		ShowAllGroups bool            `json:"showAllGroups"`
	}{
		Entities:      rawOr(s.Entities, "[]"),
		Groups:        rawOr(s.Groups, "[]"),
		ActiveGroupID: s.ActiveGroupID,
		ShowAllGroups: s.ShowAllGroups,
	})
	if err != nil {
		return nil, err
	}
	return canvas.DecodeSnapshot(raw)
}

func rawOr(b datatypes.JSON, fallback string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(b)
}
