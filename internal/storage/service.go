package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/services"
	"github.com/neoncad/engine/internal/syncer"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// SnapshotService is the part of services.ProjectService a ServiceStore
// needs.
type SnapshotService interface {
	LoadSnapshot(ctx context.Context, projectID uuid.UUID) (*services.VersionedSnapshot, error)
	SaveSnapshot(ctx context.Context, projectID uuid.UUID, snap canvas.Snapshot) (*services.VersionedSnapshot, error)
}

// ServiceStore persists one project through the snapshot service in the
// same process, as the CLI does when it talks to the database directly.
type ServiceStore struct {
	svc       SnapshotService
	projectID uuid.UUID
	version   int
}

func NewServiceStore(svc SnapshotService, projectID uuid.UUID) *ServiceStore {
	return &ServiceStore{svc: svc, projectID: projectID}
}

var _ syncer.Persistence = (*ServiceStore)(nil)

// Version is the snapshot version last loaded or saved.
func (s *ServiceStore) Version() int { return s.version }

func (s *ServiceStore) Load(ctx context.Context) (*canvas.Snapshot, error) {
	v, err := s.svc.LoadSnapshot(ctx, s.projectID)
	if appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.version = v.Version
	snap := v.Snapshot
	return &snap, nil
}

func (s *ServiceStore) Save(ctx context.Context, snap canvas.Snapshot) error {
	v, err := s.svc.SaveSnapshot(ctx, s.projectID, snap)
	if err != nil {
		return err
	}
	s.version = v.Version
	return nil
}
