package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/models"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	List(ctx context.Context, limit, offset int) ([]models.Project, int64, error)
	GetByName(ctx context.Context, name string, dest *models.Project) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

// List returns a page of projects, newest first, and the total count.
func (r *projectRepository) List(ctx context.Context, limit, offset int) ([]models.Project, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count projects")
	}
	var out []models.Project
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("name")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, translate(err, "list projects")
	}
	return out, total, nil
}

func (r *projectRepository) GetByName(ctx context.Context, name string, dest *models.Project) error {
	err := r.db.WithContext(ctx).Where("name = ?", name).First(dest).Error
	return lookup(err, "get project by name", "project %q not found", name)
}
