package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/syncer"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// HTTPStore persists one project through the API's snapshot endpoint.
type HTTPStore struct {
	base      string
	projectID uuid.UUID
	client    *http.Client
}

// NewHTTPStore targets baseURL (for example http://localhost:8080). A nil
// client gets a 30 second timeout.
func NewHTTPStore(baseURL string, projectID uuid.UUID, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPStore{base: strings.TrimRight(baseURL, "/"), projectID: projectID, client: client}
}

var _ syncer.Persistence = (*HTTPStore)(nil)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type snapshotData struct {
	Version  int             `json:"version"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func (h *HTTPStore) url() string {
	return fmt.Sprintf("%s/api/v1/projects/%s/snapshot", h.base, h.projectID)
}

// Load returns nil, nil when the server has no snapshot for the project.
func (h *HTTPStore) Load(ctx context.Context) (*canvas.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(), nil)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")

	env, status, err := h.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := envelopeError(env, status); err != nil {
		return nil, err
	}
	var data snapshotData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeTransferFailed, "decode snapshot response")
	}
	return canvas.DecodeSnapshot(data.Snapshot)
}

func (h *HTTPStore) Save(ctx context.Context, snap canvas.Snapshot) error {
	body, err := snap.Encode()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encode snapshot")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url(), bytes.NewReader(body))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	env, status, err := h.do(req)
	if err != nil {
		return err
	}
	return envelopeError(env, status)
}

func (h *HTTPStore) do(req *http.Request) (*envelope, int, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeTransferFailed, req.Method+" snapshot")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, resp.StatusCode, appErr.Wrap(err, appErr.CodeTransferFailed, "read response")
	}
	var env envelope
	if len(b) > 0 {
		if err := json.Unmarshal(b, &env); err != nil && resp.StatusCode < 300 {
			return nil, resp.StatusCode, appErr.Wrap(err, appErr.CodeTransferFailed, "decode response")
		}
	}
	return &env, resp.StatusCode, nil
}

func envelopeError(env *envelope, status int) error {
	if status >= 200 && status < 300 && env.Success {
		return nil
	}
	msg := http.StatusText(status)
	if env.Error != nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	return appErr.Newf(appErr.CodeTransferFailed, "server returned %d: %s", status, msg).WithMeta("status", status)
}
