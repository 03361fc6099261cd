package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crash-review-pipeline/types"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	st := &types.PipelineState{RunID: "abc123", Status: types.RunCompleted, StartedAt: "2026-01-02T03:04:05Z", VideoFile: "out.mp4"}
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Status != types.RunCompleted || got.VideoFile != "out.mp4" {
		t.Errorf("loaded %+v", got)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir("abc123"), stateFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFileStoreNotFound(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, id := range []string{"missing", "", "../etc"} {
		if _, err := s.Load(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestFileStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	for i, id := range []string{"a", "b", "c"} {
		st := &types.PipelineState{RunID: id, StartedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339)}
		if err := s.Save(ctx, st); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "c" || ids[1] != "b" {
		t.Errorf("List = %v, want [c b]", ids)
	}
}

func TestFileStoreListMissingRoot(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope"))
	ids, err := s.List(context.Background(), 0)
	if err != nil || len(ids) != 0 {
		t.Errorf("List = %v, %v", ids, err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisStore(ctx, "127.0.0.1:1", "", time.Hour); err == nil {
		t.Fatal("expected connection error")
	}
}
