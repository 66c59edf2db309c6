package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/neoncad/engine/internal/api/types"
	"github.com/neoncad/engine/internal/bom"
	"github.com/neoncad/engine/internal/models"
	"github.com/neoncad/engine/internal/services"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// BOMHandler serves bills of materials and queued CSV exports.
type BOMHandler struct {
	svc services.BOMService
}

func NewBOMHandler(svc services.BOMService) *BOMHandler {
	return &BOMHandler{svc: svc}
}

type bomResponse struct {
	*bom.Report
	Rows           []bom.Row `json:"rows"`
	EquipmentTotal int       `json:"equipmentTotal"`
}

func (h *BOMHandler) JSON(w http.ResponseWriter, r *http.Request) {
	id, view, err := h.target(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.svc.Report(r.Context(), id, view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, bomResponse{Report: rep, Rows: rep.Rows(), EquipmentTotal: rep.EquipmentTotal()})
}

func (h *BOMHandler) CSV(w http.ResponseWriter, r *http.Request) {
	id, view, err := h.target(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.CSV(r.Context(), id, view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, fmt.Sprintf("bom-%s.csv", id), b)
}

func (h *BOMHandler) HTML(w http.ResponseWriter, r *http.Request) {
	id, view, err := h.target(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.HTML(r.Context(), id, view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *BOMHandler) target(r *http.Request) (uuid.UUID, services.View, error) {
	id, err := uuidParam(r, "id")
	if err != nil {
		return uuid.Nil, services.View{}, err
	}
	view, err := viewQuery(r)
	return id, view, err
}

func (h *BOMHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ExportCreateRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	e, err := h.svc.EnqueueExport(r.Context(), id, services.View{GroupID: req.GroupID, ShowAll: req.ShowAll})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusAccepted, types.NewExportView(e))
}

func (h *BOMHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.svc.ListExports(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]types.ExportView, 0, len(rows))
	for i := range rows {
		out = append(out, types.NewExportView(&rows[i]))
	}
	writeData(w, r, http.StatusOK, out)
}

func (h *BOMHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.GetExport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.NewExportView(e))
}

// DownloadExport returns the CSV of a completed export.
func (h *BOMHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.GetExport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if e.Status != models.ExportCompleted {
		writeError(w, r, appErr.Newf(appErr.CodeConflict, "export is %s", e.Status))
		return
	}
	writeCSV(w, fmt.Sprintf("bom-%s-v%d.csv", e.ProjectID, e.Version), []byte(e.CSV))
}

func writeCSV(w http.ResponseWriter, filename string, b []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
