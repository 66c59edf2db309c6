package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/models"
	appErr "github.com/neoncad/engine/pkg/errors"
)

type SnapshotRepository interface {
	BaseRepository[models.ProjectSnapshot]
	GetCurrentByProject(ctx context.Context, projectID uuid.UUID, dest *models.ProjectSnapshot) error
	GetByVersion(ctx context.Context, projectID uuid.UUID, version int, dest *models.ProjectSnapshot) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectSnapshot, error)
	SetCurrent(ctx context.Context, projectID uuid.UUID, version int) error
	// SaveVersion stores snap as the next version and makes it current. If
	// the current version has the same checksum it is returned instead and
	// created is false.
	SaveVersion(ctx context.Context, snap *models.ProjectSnapshot) (created bool, err error)
}

type snapshotRepository struct {
	BaseRepository[models.ProjectSnapshot]
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{BaseRepository: NewBaseRepository[models.ProjectSnapshot](db, "snapshot"), db: db}
}

func (r *snapshotRepository) GetCurrentByProject(ctx context.Context, projectID uuid.UUID, dest *models.ProjectSnapshot) error {
	err := r.db.WithContext(ctx).Where("project_id = ? AND is_current = ?", projectID, true).First(dest).Error
	return lookup(err, "get current snapshot", "project %s has no saved snapshot", projectID)
}

func (r *snapshotRepository) GetByVersion(ctx context.Context, projectID uuid.UUID, version int, dest *models.ProjectSnapshot) error {
	err := r.db.WithContext(ctx).Where("project_id = ? AND version = ?", projectID, version).First(dest).Error
	return lookup(err, "get snapshot version", "snapshot version %d not found", version)
}

// ListByProject returns every version without its payload, newest first.
func (r *snapshotRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectSnapshot, error) {
	var out []models.ProjectSnapshot
	err := r.db.WithContext(ctx).
		Select("id", "project_id", "version", "active_group_id", "show_all_groups", "checksum", "is_current", "created_at", "updated_at").
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "list snapshots")
	}
	return out, nil
}

// SetCurrent marks the specified version as current and clears the previous
// current flag in one transaction.
func (r *snapshotRepository) SetCurrent(ctx context.Context, projectID uuid.UUID, version int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProjectSnapshot{}).
			Where("project_id = ? AND is_current = ?", projectID, true).
			Update("is_current", false).Error; err != nil {
			return translate(err, "clear current flag")
		}
		res := tx.Model(&models.ProjectSnapshot{}).
			Where("project_id = ? AND version = ?", projectID, version).
			Update("is_current", true)
		return affected(res, "set current flag", "snapshot version %d not found", version)
	})
}

func (r *snapshotRepository) SaveVersion(ctx context.Context, snap *models.ProjectSnapshot) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ProjectSnapshot
		err := tx.Where("project_id = ? AND is_current = ?", snap.ProjectID, true).First(&current).Error
		switch {
		case err == nil:
			if current.Checksum == snap.Checksum {
				*snap = current
				return nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return translate(err, "get current snapshot")
		}

		var maxVersion int
		if err := tx.Model(&models.ProjectSnapshot{}).
			Where("project_id = ?", snap.ProjectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return translate(err, "read latest version")
		}

		if err := tx.Model(&models.ProjectSnapshot{}).
			Where("project_id = ? AND is_current = ?", snap.ProjectID, true).
			Update("is_current", false).Error; err != nil {
			return translate(err, "clear current flag")
		}

		snap.ID = uuid.Nil
		snap.Version = maxVersion + 1
		snap.IsCurrent = true
		if err := tx.Create(snap).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appErr.Wrap(err, appErr.CodeConflict, "concurrent snapshot save")
			}
			return translate(err, "create snapshot")
		}
		created = true
		return nil
	})
	return created, err
}
