// Package storage provides the persistence collaborators of the sync
// engine: a JSON file, the snapshot service in process, and the HTTP API.
package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/syncer"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// FileStore keeps a snapshot in one JSON file. It serves as the local
// fallback copy and as the CLI's document format.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

var _ syncer.Persistence = (*FileStore)(nil)

// Load returns nil, nil when the file does not exist.
func (f *FileStore) Load(context.Context) (*canvas.Snapshot, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeTransferFailed, "read snapshot file")
	}
	return canvas.DecodeSnapshot(b)
}

// Save writes to a temporary file in the same directory and renames it over
// the target, so readers never see a partial document.
func (f *FileStore) Save(_ context.Context, snap canvas.Snapshot) error {
	b, err := snap.EncodeIndent()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encode snapshot")
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return appErr.Wrap(err, appErr.CodeTransferFailed, "create snapshot dir")
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return appErr.Wrap(err, appErr.CodeTransferFailed, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return appErr.Wrap(err, appErr.CodeTransferFailed, "write snapshot file")
	}
	if err := tmp.Close(); err != nil {
		return appErr.Wrap(err, appErr.CodeTransferFailed, "close snapshot file")
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return appErr.Wrap(err, appErr.CodeTransferFailed, "replace snapshot file")
	}
	return nil
}
