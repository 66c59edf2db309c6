package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/neoncad/engine/internal/api/types"
	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/services"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// SnapshotsHandler serves the current snapshot of a project and its
// version history.
type SnapshotsHandler struct {
	svc services.ProjectService
}

func NewSnapshotsHandler(svc services.ProjectService) *SnapshotsHandler {
	return &SnapshotsHandler{svc: svc}
}

func (h *SnapshotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.LoadSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, v)
}

// Put stores the body as the next version. The body is decoded with the
// snapshot codec, so the legacy browser format is accepted too.
func (h *SnapshotsHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var raw json.RawMessage
	if err := decode(r, &raw); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := canvas.DecodeSnapshot(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snap.Skipped > 0 {
		writeError(w, r, appErr.Newf(appErr.CodeInvalid, "%d object(s) could not be decoded", snap.Skipped))
		return
	}
	v, err := h.svc.SaveSnapshot(r.Context(), id, *snap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if v.Created {
		status = http.StatusCreated
	}
	writeData(w, r, status, v)
}

func (h *SnapshotsHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.svc.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.NewVersionSummaries(rows))
}

func (h *SnapshotsHandler) Version(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := intParam(r, "version")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.GetVersion(r.Context(), id, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, v)
}

func (h *SnapshotsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := intParam(r, "version")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.RestoreVersion(r.Context(), id, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, v)
}
