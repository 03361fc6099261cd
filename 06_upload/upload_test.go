package upload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crash-review-pipeline/config"
	"crash-review-pipeline/types"

	"google.golang.org/api/option"
)

func sampleTimeline() *types.Timeline {
	return &types.Timeline{
		Title:               "교차로 비보호 좌회전 사고",
		FinalLiabilityRatio: types.LiabilityRatio{Dashcam: 20, Other: 80},
		Scenes: []types.Scene{
			{SceneID: 1, Narration: "신호가 바뀌는 순간"},
			{SceneID: 2, Narration: " "},
			{SceneID: 3, Narration: "상대 차량이 진입합니다"},
		},
	}
}

func TestBuildMetadataJoinsNarrationAndRatio(t *testing.T) {
	md := BuildMetadata(sampleTimeline(), config.Default().Upload)

	if md.Title != "교차로 비보호 좌회전 사고" {
		t.Errorf("title = %q", md.Title)
	}
	if !strings.HasPrefix(md.Description, "과실비율 블랙박스 20 : 상대 80") {
		t.Errorf("description missing ratio: %q", md.Description)
	}
	if !strings.HasSuffix(md.Description, "신호가 바뀌는 순간 상대 차량이 진입합니다") {
		t.Errorf("description narration: %q", md.Description)
	}
	if md.Visibility != "unlisted" || md.CategoryID != "2" {
		t.Errorf("visibility/category = %q/%q", md.Visibility, md.CategoryID)
	}
	if md.Tags[len(md.Tags)-1] != "20대80" {
		t.Errorf("tags = %v", md.Tags)
	}
}

func TestBuildMetadataPrefersSummaryNarration(t *testing.T) {
	tl := sampleTimeline()
	tl.SummaryNarration = "요약 내레이션"
	tl.FinalLiabilityRatio = types.LiabilityRatio{}

	md := BuildMetadata(tl, config.Default().Upload)
	if md.Description != "요약 내레이션" {
		t.Errorf("description = %q", md.Description)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"짧은 제목", 10, "짧은 제목"},
		{"가나다라마바사", 5, "가나..."},
		{"abcdef", 3, "abc"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRunRequiresCredentials(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "")

	video := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	u := New(config.Default().Upload, nil)
	_, _, err := u.Run(context.Background(), video, &Metadata{Title: "x"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestRunUploadsToService(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"vid123"}`))
	}))
	defer srv.Close()

	video := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	u := New(config.Default().Upload, nil)
	u.opts = []option.ClientOption{option.WithEndpoint(srv.URL + "/"), option.WithoutAuthentication()}

	id, url, err := u.Run(context.Background(), video, BuildMetadata(sampleTimeline(), config.Default().Upload))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if id != "vid123" || url != "https://www.youtube.com/watch?v=vid123" {
		t.Errorf("id=%q url=%q", id, url)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
}

func TestLogUploadWritesEntry(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	path, err := LogUpload(dir, "vid123", "https://www.youtube.com/watch?v=vid123", "final.mp4", &Metadata{Title: "t", Visibility: "unlisted"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "upload_20260301_093000.json" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatal(err)
	}
	if entry["video_id"] != "vid123" || entry["uploaded_at"] != "2026-03-01T09:30:00Z" || entry["visibility"] != "unlisted" {
		t.Errorf("entry = %v", entry)
	}
}
