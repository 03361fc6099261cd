package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"crash-review-pipeline/types"
)

var ErrNotFound = errors.New("run not found")

// Store persists pipeline run state
type Store interface {
	Save(ctx context.Context, st *types.PipelineState) error
	Load(ctx context.Context, runID string) (*types.PipelineState, error)
	List(ctx context.Context, limit int) ([]string, error)
}

// WriteJSONAtomic writes v as indented JSON through a temp file and rename.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persisting %s: %w", filepath.Base(path), err)
	}
	return nil
}
