package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/cache"
	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/models"
	"github.com/neoncad/engine/internal/repository"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
	"github.com/neoncad/engine/pkg/utils"
)

// ProjectService manages projects and their snapshot versions.
type ProjectService interface {
	CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, page, pageSize int) ([]models.Project, int64, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error

	// Snapshots
	SaveSnapshot(ctx context.Context, projectID uuid.UUID, snap canvas.Snapshot) (*VersionedSnapshot, error)
	LoadSnapshot(ctx context.Context, projectID uuid.UUID) (*VersionedSnapshot, error)
	ListVersions(ctx context.Context, projectID uuid.UUID) ([]models.ProjectSnapshot, error)
	GetVersion(ctx context.Context, projectID uuid.UUID, version int) (*VersionedSnapshot, error)
	RestoreVersion(ctx context.Context, projectID uuid.UUID, version int) (*VersionedSnapshot, error)
}

type CreateProjectInput struct {
	Name        string
	Description string
}

// VersionedSnapshot is a decoded snapshot with the version it was stored as.
// Created is false when a save matched the current version and nothing was
// written.
type VersionedSnapshot struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Created  bool            `json:"created"`
	Snapshot canvas.Snapshot `json:"snapshot"`
}

type projectService struct {
	projectRepo  repository.ProjectRepository
	snapshotRepo repository.SnapshotRepository
	cache        cache.SnapshotCache
}

func NewProjectService(projectRepo repository.ProjectRepository, snapshotRepo repository.SnapshotRepository, c cache.SnapshotCache) ProjectService {
	if c == nil {
		c = cache.Noop{}
	}
	return &projectService{projectRepo: projectRepo, snapshotRepo: snapshotRepo, cache: c}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "project name is required")
	}
	logger.L().Info("create project", zap.String("name", name))

	var existing models.Project
	err := s.projectRepo.GetByName(ctx, name, &existing)
	switch {
	case err == nil:
		return nil, appErr.Newf(appErr.CodeAlreadyExists, "project %q already exists", name)
	case !appErr.IsCode(err, appErr.CodeNotFound):
		return nil, err
	}

	p := &models.Project{Name: name, Description: input.Description}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.L().Info("project created", zap.String("project_id", p.ID.String()), zap.String("name", name))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) ListProjects(ctx context.Context, page, pageSize int) ([]models.Project, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.projectRepo.List(ctx, pageSize, (page-1)*pageSize)
}

func (s *projectService) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	logger.L().Info("delete project", zap.String("project_id", projectID.String()))
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return err
	}
	s.evict(ctx, projectID)
	logger.L().Info("project deleted", zap.String("project_id", projectID.String()))
	return nil
}

func (s *projectService) SaveSnapshot(ctx context.Context, projectID uuid.UUID, snap canvas.Snapshot) (*VersionedSnapshot, error) {
	snap, err := snap.Normalize()
	if err != nil {
		return nil, err
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	row, err := models.NewProjectSnapshot(projectID, snap)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "encode snapshot")
	}
	row.Checksum = checksum(row)

	created, err := s.snapshotRepo.SaveVersion(ctx, row)
	if err != nil {
		return nil, err
	}
	out, err := versioned(row)
	if err != nil {
		return nil, err
	}
	out.Created = created
	if created {
		logger.L().Info("snapshot saved", zap.String("project_id", projectID.String()), zap.Int("version", row.Version), zap.Int("entities", len(out.Snapshot.Entities)))
	} else {
		logger.L().Debug("snapshot unchanged", zap.String("project_id", projectID.String()), zap.Int("version", row.Version))
	}
	s.store(ctx, projectID, out)
	return out, nil
}

func (s *projectService) LoadSnapshot(ctx context.Context, projectID uuid.UUID) (*VersionedSnapshot, error) {
	e, err := s.cache.Get(ctx, projectID)
	if err != nil {
		logger.L().Warn("snapshot cache read failed", zap.String("project_id", projectID.String()), zap.Error(err))
	}
	if e != nil {
		return &VersionedSnapshot{Version: e.Version, Checksum: e.Checksum, Snapshot: e.Snapshot}, nil
	}

	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var row models.ProjectSnapshot
	if err := s.snapshotRepo.GetCurrentByProject(ctx, projectID, &row); err != nil {
		return nil, err
	}
	out, err := versioned(&row)
	if err != nil {
		return nil, err
	}
	s.store(ctx, projectID, out)
	return out, nil
}

func (s *projectService) ListVersions(ctx context.Context, projectID uuid.UUID) ([]models.ProjectSnapshot, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.snapshotRepo.ListByProject(ctx, projectID)
}

func (s *projectService) GetVersion(ctx context.Context, projectID uuid.UUID, version int) (*VersionedSnapshot, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var row models.ProjectSnapshot
	if err := s.snapshotRepo.GetByVersion(ctx, projectID, version, &row); err != nil {
		return nil, err
	}
	return versioned(&row)
}

// RestoreVersion makes an older version current again without copying it.
func (s *projectService) RestoreVersion(ctx context.Context, projectID uuid.UUID, version int) (*VersionedSnapshot, error) {
	logger.L().Info("restore version", zap.String("project_id", projectID.String()), zap.Int("version", version))
	out, err := s.GetVersion(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	if err := s.snapshotRepo.SetCurrent(ctx, projectID, version); err != nil {
		return nil, err
	}
	s.store(ctx, projectID, out)
	return out, nil
}

func (s *projectService) store(ctx context.Context, projectID uuid.UUID, v *VersionedSnapshot) {
	e := cache.Entry{Version: v.Version, Checksum: v.Checksum, Snapshot: v.Snapshot}
	if err := s.cache.Set(ctx, projectID, e); err != nil {
		logger.L().Warn("snapshot cache write failed", zap.String("project_id", projectID.String()), zap.Error(err))
		s.evict(ctx, projectID)
	}
}

func (s *projectService) evict(ctx context.Context, projectID uuid.UUID) {
	if err := s.cache.Delete(ctx, projectID); err != nil {
		logger.L().Warn("snapshot cache evict failed", zap.String("project_id", projectID.String()), zap.Error(err))
	}
}

func checksum(row *models.ProjectSnapshot) string {
	return utils.Checksum(
		[]byte(row.Entities),
		[]byte(row.Groups),
		[]byte(strconv.Itoa(row.ActiveGroupID)),
		[]byte(strconv.FormatBool(row.ShowAllGroups)),
	)
}

func versioned(row *models.ProjectSnapshot) (*VersionedSnapshot, error) {
	snap, err := row.Snapshot()
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode stored snapshot")
	}
	return &VersionedSnapshot{Version: row.Version, Checksum: row.Checksum, Snapshot: *snap}, nil
}
