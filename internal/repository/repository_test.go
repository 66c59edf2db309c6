package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/models"
	"github.com/neoncad/engine/pkg/database"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/utils"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "repo.db"), database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func snapshotFor(t *testing.T, projectID uuid.UUID, label string) *models.ProjectSnapshot {
	t.Helper()
	snap := canvas.Blank()
	snap.Entities = []canvas.Entity{{
		ID: "p1", Kind: canvas.KindPoint, GroupID: 1, Label: label,
		Geometry: []canvas.Coord{canvas.C(55.7, 37.6)},
		Style:    canvas.Style{Width: 6, Opacity: 1, Dash: "solid"},
		Meta:     canvas.Metadata{Subtype: canvas.SubtypePole, IconColor: "#FF3333"},
	}}
	row, err := models.NewProjectSnapshot(projectID, snap)
	require.NoError(t, err)
	row.Checksum = utils.Checksum([]byte(row.Entities), []byte(row.Groups))
	return row
}

func createProject(t *testing.T, repo ProjectRepository, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	require.NoError(t, repo.Create(context.Background(), p))
	require.NotEqual(t, uuid.Nil, p.ID)
	return p
}

func TestProjectRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(openTestDB(t))

	a := createProject(t, repo, "Квартал 12")
	createProject(t, repo, "Подстанция")

	err := repo.Create(ctx, &models.Project{Name: "Квартал 12"})
	require.Error(t, err)

	var got models.Project
	require.NoError(t, repo.GetByName(ctx, "Квартал 12", &got))
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, appErr.IsCode(repo.GetByName(ctx, "нет", &got), appErr.CodeNotFound))

	list, total, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.True(t, appErr.IsCode(repo.GetByID(ctx, a.ID, &got), appErr.CodeNotFound))
	assert.True(t, appErr.IsCode(repo.Delete(ctx, a.ID), appErr.CodeNotFound))
}

func TestSnapshotVersions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	projects := NewProjectRepository(db)
	repo := NewSnapshotRepository(db)
	p := createProject(t, projects, "Улица")

	var current models.ProjectSnapshot
	assert.True(t, appErr.IsCode(repo.GetCurrentByProject(ctx, p.ID, &current), appErr.CodeNotFound))

	first := snapshotFor(t, p.ID, "A")
	created, err := repo.SaveVersion(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Version)

	same := snapshotFor(t, p.ID, "A")
	created, err = repo.SaveVersion(ctx, same)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, same.Version)
	assert.Equal(t, first.ID, same.ID)

	second := snapshotFor(t, p.ID, "B")
	created, err = repo.SaveVersion(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, second.Version)

	require.NoError(t, repo.GetCurrentByProject(ctx, p.ID, &current))
	assert.Equal(t, 2, current.Version)
	snap, err := current.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, "B", snap.Entities[0].Label)
	assert.True(t, snap.ShowAllGroups)

	versions, err := repo.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.True(t, versions[0].IsCurrent)
	assert.False(t, versions[1].IsCurrent)
	assert.Empty(t, versions[0].Entities)

	require.NoError(t, repo.SetCurrent(ctx, p.ID, 1))
	require.NoError(t, repo.GetCurrentByProject(ctx, p.ID, &current))
	assert.Equal(t, 1, current.Version)
	assert.True(t, appErr.IsCode(repo.SetCurrent(ctx, p.ID, 9), appErr.CodeNotFound))

	// the failed SetCurrent rolled back
	require.NoError(t, repo.GetCurrentByProject(ctx, p.ID, &current))
	assert.Equal(t, 1, current.Version)

	third := snapshotFor(t, p.ID, "C")
	_, err = repo.SaveVersion(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Version)

	var v2 models.ProjectSnapshot
	require.NoError(t, repo.GetByVersion(ctx, p.ID, 2, &v2))
	assert.False(t, v2.IsCurrent)
	assert.True(t, appErr.IsCode(repo.GetByVersion(ctx, p.ID, 7, &v2), appErr.CodeNotFound))
}

func TestDeletingProjectCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	projects := NewProjectRepository(db)
	snaps := NewSnapshotRepository(db)
	exports := NewExportRepository(db)
	p := createProject(t, projects, "Снос")

	_, err := snaps.SaveVersion(ctx, snapshotFor(t, p.ID, "x"))
	require.NoError(t, err)
	require.NoError(t, exports.Create(ctx, &models.BOMExport{ProjectID: p.ID, Status: models.ExportPending, ShowAll: true}))

	require.NoError(t, projects.Delete(ctx, p.ID))

	left, err := snaps.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	ex, err := exports.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ex)
}

func TestExportLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	p := createProject(t, NewProjectRepository(db), "Экспорт")
	repo := NewExportRepository(db)

	e := &models.BOMExport{ProjectID: p.ID, Status: models.ExportPending, ShowAll: true}
	require.NoError(t, repo.Create(ctx, e))

	require.NoError(t, repo.UpdateStatus(ctx, e.ID, models.ExportRunning))
	require.NoError(t, repo.Complete(ctx, e.ID, 4, "a;b\n"))

	var got models.BOMExport
	require.NoError(t, repo.GetByID(ctx, e.ID, &got))
	assert.Equal(t, models.ExportCompleted, got.Status)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, "a;b\n", got.CSV)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, repo.Fail(ctx, e.ID, "boom"))
	require.NoError(t, repo.GetByID(ctx, e.ID, &got))
	assert.Equal(t, models.ExportFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.True(t, appErr.IsCode(repo.UpdateStatus(ctx, uuid.New(), models.ExportRunning), appErr.CodeNotFound))
}

func TestNotFoundNamesResource(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	missing := uuid.New()

	var e models.BOMExport
	err := NewExportRepository(db).GetByID(ctx, missing, &e)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	assert.Contains(t, err.Error(), "export "+missing.String()+" not found")

	var s models.ProjectSnapshot
	err = NewSnapshotRepository(db).GetCurrentByProject(ctx, missing, &s)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	assert.Contains(t, err.Error(), missing.String())

	err = NewExportRepository(db).Fail(ctx, missing, "boom")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	assert.Contains(t, err.Error(), "export "+missing.String())
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "noop"))
	assert.Equal(t, appErr.CodeAlreadyExists, appErr.CodeOf(translate(gorm.ErrDuplicatedKey, "create project")))
	assert.Equal(t, appErr.CodeNotFound, appErr.CodeOf(translate(gorm.ErrRecordNotFound, "update project")))
	err := translate(assert.AnError, "list projects")
	assert.Equal(t, appErr.CodeInternal, appErr.CodeOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}
