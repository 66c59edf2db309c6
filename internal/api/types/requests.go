package types

import (
	"time"

	"github.com/neoncad/engine/internal/models"
)

type ProjectCreateRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type ExportCreateRequest struct {
	GroupID int  `json:"group_id" validate:"gte=0"`
	ShowAll bool `json:"show_all"`
}

// VersionSummary is one entry of the version list.
type VersionSummary struct {
	Version       int    `json:"version"`
	Checksum      string `json:"checksum"`
	IsCurrent     bool   `json:"is_current"`
	ActiveGroupID int    `json:"active_group_id"`
	ShowAllGroups bool   `json:"show_all_groups"`
	CreatedAt     string `json:"created_at"`
}

func NewVersionSummaries(rows []models.ProjectSnapshot) []VersionSummary {
	out := make([]VersionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, VersionSummary{
			Version:       r.Version,
			Checksum:      r.Checksum,
			IsCurrent:     r.IsCurrent,
			ActiveGroupID: r.ActiveGroupID,
			ShowAllGroups: r.ShowAllGroups,
			CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// ExportView is a BOM export with the link to its CSV once completed.
type ExportView struct {
	*models.BOMExport
	DownloadURL string `json:"download_url,omitempty"`
}

func NewExportView(e *models.BOMExport) ExportView {
	v := ExportView{BOMExport: e}
	if e.Status == models.ExportCompleted {
		v.DownloadURL = "/api/v1/exports/" + e.ID.String() + "/csv"
	}
	return v
}
