package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/models"
)

type ExportRepository interface {
	BaseRepository[models.BOMExport]
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BOMExport, error)
	UpdateStatus(ctx context.Context, exportID uuid.UUID, status string) error
	Complete(ctx context.Context, exportID uuid.UUID, version int, csv string) error
	Fail(ctx context.Context, exportID uuid.UUID, reason string) error
}

type exportRepository struct {
	BaseRepository[models.BOMExport]
	db *gorm.DB
}

func NewExportRepository(db *gorm.DB) ExportRepository {
	return &exportRepository{BaseRepository: NewBaseRepository[models.BOMExport](db, "export"), db: db}
}

func (r *exportRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BOMExport, error) {
	var out []models.BOMExport
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, translate(err, "list exports")
	}
	return out, nil
}

func (r *exportRepository) UpdateStatus(ctx context.Context, exportID uuid.UUID, status string) error {
	return r.updates(ctx, exportID, map[string]any{"status": status})
}

func (r *exportRepository) Complete(ctx context.Context, exportID uuid.UUID, version int, csv string) error {
	return r.updates(ctx, exportID, map[string]any{
		"status":       models.ExportCompleted,
		"version":      version,
		"csv":          csv,
		"error":        "",
		"completed_at": time.Now().UTC(),
	})
}

func (r *exportRepository) Fail(ctx context.Context, exportID uuid.UUID, reason string) error {
	return r.updates(ctx, exportID, map[string]any{
		"status":       models.ExportFailed,
		"error":        reason,
		"completed_at": time.Now().UTC(),
	})
}

func (r *exportRepository) updates(ctx context.Context, exportID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.BOMExport{}).Where("id = ?", exportID).Updates(fields)
	return affected(res, "update export", "export %s not found", exportID)
}
