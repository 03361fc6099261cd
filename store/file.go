package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"crash-review-pipeline/types"
)

const stateFileName = "pipeline_state.json"

// FileStore keeps one <root>/<run id>/pipeline_state.json per run
type FileStore struct {
	Root string
}

// NewFileStore creates a FileStore rooted at root
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// RunDir is where a run keeps its state and artifacts
func (s *FileStore) RunDir(runID string) string {
	return filepath.Join(s.Root, runID)
}

func (s *FileStore) Save(_ context.Context, st *types.PipelineState) error {
	if st.RunID == "" {
		return errors.New("save state: empty run id")
	}
	return WriteJSONAtomic(filepath.Join(s.RunDir(st.RunID), stateFileName), st)
}

func (s *FileStore) Load(_ context.Context, runID string) (*types.PipelineState, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), stateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var st types.PipelineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshalling state file: %w", err)
	}
	return &st, nil
}

// List returns run ids, newest first
func (s *FileStore) List(ctx context.Context, limit int) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}
	var states []*types.PipelineState
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st, err := s.Load(ctx, e.Name())
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt > states[j].StartedAt
	})
	ids := make([]string, 0, len(states))
	for _, st := range states {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, st.RunID)
	}
	return ids, nil
}
