package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoncad/engine/internal/api/handlers"
	"github.com/neoncad/engine/internal/repository"
	"github.com/neoncad/engine/internal/services"
	"github.com/neoncad/engine/pkg/database"
	"github.com/neoncad/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

const snapshotBody = `{
  "entities": [
    {"id": "p1", "kind": "point", "groupId": 1, "geometry": [[55.75, 37.61]],
     "style": {"color": "", "width": 6, "opacity": 1, "dash": "solid"},
     "meta": {"subtype": "pole", "iconColor": "#FF3333"}},
    {"id": "c1", "kind": "line", "groupId": 1, "geometry": [[55.75, 37.61], [55.751, 37.61]],
     "style": {"color": "#FF3333", "width": 5, "opacity": 1, "dash": "solid"},
     "meta": {"cable": {"category": "power", "installMethod": "ground"}}}
  ],
  "groups": [{"id": 1, "name": "Группа 1"}],
  "activeGroupId": 1,
  "showAllGroups": true
}`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"), database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	projects := services.NewProjectService(repository.NewProjectRepository(db), repository.NewSnapshotRepository(db), nil)
	boms := services.NewBOMService(projects, repository.NewExportRepository(db), nil, services.BOMOptions{})
	return NewRouter(Dependencies{
		Projects: projects,
		BOM:      boms,
		DB:       handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	rr := do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestDocsRoutes(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/v1/projects")
	assert.Contains(t, doc.Paths, "/api/v1/projects/{id}/snapshot")

	rr = do(t, h, http.MethodGet, "/docs/index.html", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "openapi.json")
}

func TestProjectLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/v1/projects", `{"name": "Квартал 5", "description": "ТП-12"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decodeEnvelope(t, rr, &project)
	assert.Equal(t, "Квартал 5", project.Name)

	rr = do(t, h, http.MethodPost, "/api/v1/projects", `{"name": "Квартал 5"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/projects", `{"description": "no name"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/projects?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	decodeEnvelope(t, rr, &list)
	assert.Len(t, list, 1)

	rr = do(t, h, http.MethodGet, "/api/v1/projects/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	base := "/api/v1/projects/" + project.ID
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, base, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, base, "").Code)

	rr = do(t, h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	env := decodeEnvelope(t, rr, nil)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestSnapshotsAndBOM(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/v1/projects", `{"name": "bom"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var project struct {
		ID string `json:"id"`
	}
	decodeEnvelope(t, rr, &project)
	base := "/api/v1/projects/" + project.ID

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/snapshot", "").Code)

	rr = do(t, h, http.MethodPut, base+"/snapshot", snapshotBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var saved struct {
		Version int `json:"version"`
	}
	decodeEnvelope(t, rr, &saved)
	assert.Equal(t, 1, saved.Version)

	rr = do(t, h, http.MethodPut, base+"/snapshot", snapshotBody)
	assert.Equal(t, http.StatusOK, rr.Code, "unchanged content keeps the version")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, base+"/snapshot", `{"entities": 5}`).Code)

	rr = do(t, h, http.MethodPut, base+"/snapshot", `{"entities": [{"id": "l1", "kind": "line", "groupId": 1, "geometry": [[55.75, 37.61]]}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	env := decodeEnvelope(t, rr, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_geometry", env.Error.Code)

	rr = do(t, h, http.MethodPut, base+"/snapshot", `{"entities": [{"id": "b1", "kind": "banana", "geometry": [[55.75, 37.61]]}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	rr = do(t, h, http.MethodPut, base+"/snapshot", `{"entities": [{"id": "p9", "kind": "point", "groupId": 99, "geometry": [[55.75, 37.61]]}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, base+"/versions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var versions []struct {
		Version   int  `json:"version"`
		IsCurrent bool `json:"is_current"`
	}
	decodeEnvelope(t, rr, &versions)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].IsCurrent)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, base+"/versions/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/versions/7", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, base+"/versions/zero", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/versions/1/restore", "").Code)

	rr = do(t, h, http.MethodGet, base+"/bom", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var report struct {
		GroupName      string `json:"groupName"`
		EquipmentTotal int    `json:"equipmentTotal"`
		Rows           []any  `json:"rows"`
	}
	decodeEnvelope(t, rr, &report)
	assert.Equal(t, "Все", report.GroupName)
	assert.Equal(t, 1, report.EquipmentTotal)
	assert.NotEmpty(t, report.Rows)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/bom?group=9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, base+"/bom?all=maybe", "").Code)

	rr = do(t, h, http.MethodGet, base+"/bom.csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "\uFEFF"))

	rr = do(t, h, http.MethodGet, base+"/bom.html", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
}

func TestExportsRenderInlineWithoutQueue(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/v1/projects", `{"name": "exports"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var project struct {
		ID string `json:"id"`
	}
	decodeEnvelope(t, rr, &project)
	base := "/api/v1/projects/" + project.ID
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPut, base+"/snapshot", snapshotBody).Code)

	rr = do(t, h, http.MethodPost, base+"/exports", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var export struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Version     int    `json:"version"`
		DownloadURL string `json:"download_url"`
	}
	decodeEnvelope(t, rr, &export)
	assert.Equal(t, "completed", export.Status)
	assert.Equal(t, 1, export.Version)
	require.Equal(t, "/api/v1/exports/"+export.ID+"/csv", export.DownloadURL)

	rr = do(t, h, http.MethodPost, base+"/exports", `{"show_all": true}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, http.MethodGet, base+"/exports", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	decodeEnvelope(t, rr, &list)
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/exports/"+export.ID, "").Code)

	rr = do(t, h, http.MethodGet, export.DownloadURL, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "\uFEFF"))
}
