package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// TypeBOMExport renders the CSV bill of materials of a queued export.
const TypeBOMExport = "bom:export"

// BOMExportPayload is the task payload for TypeBOMExport.
type BOMExportPayload struct {
	ExportID string `json:"export_id"`
}

// NewBOMExportTask builds the task for exportID. Retries are capped low
// because a failed render is recorded on the export row.
func NewBOMExportTask(exportID uuid.UUID) (*asynq.Task, error) {
	b, err := json.Marshal(BOMExportPayload{ExportID: exportID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeBOMExport, b, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// ExportRunner renders one export and stores the result on its row.
type ExportRunner interface {
	RunExport(ctx context.Context, exportID uuid.UUID) error
}

// BOMExportHandler handles TypeBOMExport tasks.
type BOMExportHandler struct {
	runner ExportRunner
}

func NewBOMExportHandler(runner ExportRunner) *BOMExportHandler {
	return &BOMExportHandler{runner: runner}
}

func (h *BOMExportHandler) HandleBOMExport(ctx context.Context, t *asynq.Task) error {
	var p BOMExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid export task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(p.ExportID)
	if err != nil {
		logger.L().Error("invalid export id in task", zap.String("export_id", p.ExportID), zap.Error(err))
		return fmt.Errorf("parse export id: %v: %w", err, asynq.SkipRetry)
	}

	logger.L().Info("handling export task", zap.String("export_id", id.String()))
	if err := h.runner.RunExport(ctx, id); err != nil {
		// The row is already marked failed; only transport errors are worth
		// another attempt.
		if appErr.IsCode(err, appErr.CodeNotFound) || appErr.IsCode(err, appErr.CodeInvalid) {
			logger.L().Warn("export task dropped", zap.String("export_id", id.String()), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.L().Error("export task failed", zap.String("export_id", id.String()), zap.Error(err))
		return err
	}
	logger.L().Info("export task completed", zap.String("export_id", id.String()))
	return nil
}
