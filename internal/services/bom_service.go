package services

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/bom"
	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/geometry"
	"github.com/neoncad/engine/internal/models"
	"github.com/neoncad/engine/internal/queue/tasks"
	"github.com/neoncad/engine/internal/repository"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// BOMService builds bills of materials from the current snapshot of a
// project, directly or through queued CSV exports.
type BOMService interface {
	Report(ctx context.Context, projectID uuid.UUID, view View) (*bom.Report, error)
	CSV(ctx context.Context, projectID uuid.UUID, view View) ([]byte, error)
	HTML(ctx context.Context, projectID uuid.UUID, view View) ([]byte, error)

	// Exports
	EnqueueExport(ctx context.Context, projectID uuid.UUID, view View) (*models.BOMExport, error)
	GetExport(ctx context.Context, exportID uuid.UUID) (*models.BOMExport, error)
	ListExports(ctx context.Context, projectID uuid.UUID) ([]models.BOMExport, error)
	RunExport(ctx context.Context, exportID uuid.UUID) error
}

// View selects which groups a report covers. ShowAll wins over GroupID;
// the zero View uses the group selection stored in the snapshot.
type View struct {
	GroupID int
	ShowAll bool
}

func (v View) session(snap canvas.Snapshot, decimalComma bool) (canvas.Session, error) {
	sess := canvas.NewSession()
	sess.DecimalComma = decimalComma
	switch {
	case v.ShowAll:
		sess.ShowAllGroups = true
		sess.ActiveGroupID = snap.ActiveGroupID
	case v.GroupID > 0:
		if !hasGroup(snap.Groups, v.GroupID) {
			return sess, appErr.Newf(appErr.CodeNotFound, "group %d not found", v.GroupID)
		}
		sess.ShowAllGroups = false
		sess.ActiveGroupID = v.GroupID
	default:
		sess.ShowAllGroups = snap.ShowAllGroups
		sess.ActiveGroupID = snap.ActiveGroupID
	}
	return sess, nil
}

func hasGroup(groups []canvas.Group, id int) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

type BOMOptions struct {
	DecimalComma bool
	Geometry     geometry.Service
}

type bomService struct {
	projects    ProjectService
	exportRepo  repository.ExportRepository
	asynqClient *asynq.Client
	geom        geometry.Service
	comma       bool
}

func NewBOMService(projects ProjectService, exportRepo repository.ExportRepository, client *asynq.Client, opts BOMOptions) BOMService {
	if opts.Geometry == nil {
		opts.Geometry = geometry.Geodesic{}
	}
	return &bomService{projects: projects, exportRepo: exportRepo, asynqClient: client, geom: opts.Geometry, comma: opts.DecimalComma}
}

var _ BOMService = (*bomService)(nil)
var _ tasks.ExportRunner = (*bomService)(nil)

func (s *bomService) report(ctx context.Context, projectID uuid.UUID, view View) (*bom.Report, int, error) {
	v, err := s.projects.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	sess, err := view.session(v.Snapshot, s.comma)
	if err != nil {
		return nil, 0, err
	}
	r := bom.Aggregate(v.Snapshot.Entities, sess, v.Snapshot.Groups, s.geom)
	return &r, v.Version, nil
}

func (s *bomService) Report(ctx context.Context, projectID uuid.UUID, view View) (*bom.Report, error) {
	r, _, err := s.report(ctx, projectID, view)
	return r, err
}

func (s *bomService) CSV(ctx context.Context, projectID uuid.UUID, view View) ([]byte, error) {
	r, _, err := s.report(ctx, projectID, view)
	if err != nil {
		return nil, err
	}
	return renderCSV(r)
}

func (s *bomService) HTML(ctx context.Context, projectID uuid.UUID, view View) ([]byte, error) {
	r, _, err := s.report(ctx, projectID, view)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := bom.RenderHTML(&buf, *r); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "render bom html")
	}
	return buf.Bytes(), nil
}

func renderCSV(r *bom.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := bom.WriteCSV(&buf, *r); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "write bom csv")
	}
	return buf.Bytes(), nil
}

func (s *bomService) EnqueueExport(ctx context.Context, projectID uuid.UUID, view View) (*models.BOMExport, error) {
	logger.L().Info("enqueue export", zap.String("project_id", projectID.String()))
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	e := &models.BOMExport{
		ProjectID: projectID,
		GroupID:   view.GroupID,
		ShowAll:   view.ShowAll,
		Status:    models.ExportPending,
	}
	if err := s.exportRepo.Create(ctx, e); err != nil {
		return nil, err
	}

	if s.asynqClient == nil {
		logger.L().Warn("asynq client not configured, rendering export inline", zap.String("export_id", e.ID.String()))
		if err := s.RunExport(ctx, e.ID); err != nil {
			logger.L().Warn("inline export failed", zap.String("export_id", e.ID.String()), zap.Error(err))
		}
		return s.GetExport(ctx, e.ID)
	}

	task, err := tasks.NewBOMExportTask(e.ID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "build export task")
	}
	if _, err := s.asynqClient.EnqueueContext(ctx, task); err != nil {
		logger.L().Error("enqueue export task failed", zap.Error(err), zap.String("export_id", e.ID.String()))
		_ = s.exportRepo.Fail(ctx, e.ID, "enqueue failed")
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "enqueue export task failed")
	}

	logger.L().Info("export created and enqueued", zap.String("export_id", e.ID.String()), zap.String("project_id", projectID.String()))
	return e, nil
}

func (s *bomService) GetExport(ctx context.Context, exportID uuid.UUID) (*models.BOMExport, error) {
	var e models.BOMExport
	if err := s.exportRepo.GetByID(ctx, exportID, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *bomService) ListExports(ctx context.Context, projectID uuid.UUID) ([]models.BOMExport, error) {
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.exportRepo.ListByProject(ctx, projectID)
}

// RunExport renders the export against the project's current snapshot.
// Render failures are recorded on the row and also returned.
func (s *bomService) RunExport(ctx context.Context, exportID uuid.UUID) error {
	e, err := s.GetExport(ctx, exportID)
	if err != nil {
		return err
	}
	if e.Status == models.ExportCompleted {
		logger.L().Info("export already completed", zap.String("export_id", exportID.String()))
		return nil
	}
	if err := s.exportRepo.UpdateStatus(ctx, exportID, models.ExportRunning); err != nil {
		return err
	}

	r, version, err := s.report(ctx, e.ProjectID, View{GroupID: e.GroupID, ShowAll: e.ShowAll})
	if err == nil {
		var csv []byte
		if csv, err = renderCSV(r); err == nil {
			if err := s.exportRepo.Complete(ctx, exportID, version, string(csv)); err != nil {
				return err
			}
			logger.L().Info("export completed", zap.String("export_id", exportID.String()), zap.Int("version", version), zap.Int("bytes", len(csv)))
			return nil
		}
	}

	logger.L().Error("export failed", zap.String("export_id", exportID.String()), zap.Error(err))
	if ferr := s.exportRepo.Fail(ctx, exportID, err.Error()); ferr != nil {
		logger.L().Error("mark export failed", zap.String("export_id", exportID.String()), zap.Error(ferr))
	}
	return err
}
