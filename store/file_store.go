package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-emotion/analysis"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// ErrNotFound is returned by Load for an unknown record id.
var ErrNotFound = errors.New("analysis record not found")

// Record is one persisted analysis.
type Record struct {
	ID        string                   `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	Result    *analysis.AnalysisResult `json:"result"`
}

// FileStore keeps each analysis as <dir>/<uuid>.json.
type FileStore struct {
	dir    string
	now    func() time.Time
	logger logging.Logger
}

var _ analysis.Store = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		dir: dir,
		now: time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "file_store",
			"dir":       dir,
		}),
	}, nil
}

// Store writes result under a fresh uuid and returns the id. The file is
// written to a temporary name and renamed, so readers never see a partial
// record.
func (fs *FileStore) Store(ctx context.Context, result *analysis.AnalysisResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("cannot store a nil analysis result")
	}

	rec := Record{
		ID:        uuid.NewString(),
		CreatedAt: fs.now().UTC(),
		Result:    result,
	}

	tmp, err := os.CreateTemp(fs.dir, ".record-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create record file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path(rec.ID)); err != nil {
		return "", fmt.Errorf("failed to commit record: %w", err)
	}

	fs.logger.Debug("Stored analysis", logging.Fields{
		"function": "Store",
		"id":       rec.ID,
	})
	return rec.ID, nil
}

// Load reads the record stored under id.
func (fs *FileStore) Load(id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}

	data, err := os.ReadFile(fs.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &rec, nil
}

// Dir returns the directory records are written to.
func (fs *FileStore) Dir() string { return fs.dir }

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+".json")
}
