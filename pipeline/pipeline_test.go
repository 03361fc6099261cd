package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crash-review-pipeline/02_script"
	"crash-review-pipeline/04_timeline"
	"crash-review-pipeline/06_upload"
	"crash-review-pipeline/config"
	"crash-review-pipeline/store"
	"crash-review-pipeline/types"
)

type stubWriter struct {
	script *types.Script
	err    error
	calls  int
}

func (w *stubWriter) Generate(_ context.Context, req script.Request) (*types.Script, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	return w.script.Clone(), nil
}

type stubNarrator struct {
	outDir string
}

func (n *stubNarrator) Run(_ context.Context, s *types.Script, outDir string) (*types.Manifest, error) {
	n.outDir = outDir
	m := &types.Manifest{OriginalScript: s.Clone()}
	for _, sc := range s.Scenes {
		row := types.SceneAudio{
			SceneID:   sc.SceneID,
			AudioPath: filepath.Join(outDir, "scene.mp3"),
			Duration:  sc.EstimatedDuration,
			Narration: sc.Narration,
		}
		m.SceneAudioFiles = append(m.SceneAudioFiles, row)
		m.TotalDuration += row.Duration
	}
	return m, nil
}

type stubProber struct{ duration float64 }

func (p stubProber) Probe(_ context.Context, path string) types.FootageMeta {
	return types.FootageMeta{Path: path, Duration: p.duration, FrameRate: 30}
}

type stubComposer struct {
	got  *types.Timeline
	path string
	err  error
}

func (c *stubComposer) Compose(_ context.Context, tl *types.Timeline) (string, error) {
	c.got = tl
	return c.path, c.err
}

type stubPublisher struct {
	md  *upload.Metadata
	err error
}

func (p *stubPublisher) Run(_ context.Context, _ string, md *upload.Metadata) (string, string, error) {
	p.md = md
	if p.err != nil {
		return "", "", p.err
	}
	return "vid1", "https://www.youtube.com/watch?v=vid1", nil
}

var crashEvents = []types.Event{
	{Start: "00:00", End: "00:03", Description: "vehicle departs"},
	{Start: "00:05", End: "00:06", Description: "collision with oncoming car"},
}

func fourScenes() *types.Script {
	s := &types.Script{Scenes: []types.Scene{
		{Narration: strings.Repeat("가", 20)},
		{Narration: "교차로에 진입합니다"},
		{Narration: "상대 차량이 들어옵니다"},
		{Narration: "과실은 상대 차량에 있습니다"},
	}}
	s.JoinNarration()
	return s
}

type fixture struct {
	writer    *stubWriter
	narrator  *stubNarrator
	composer  *stubComposer
	publisher *stubPublisher
	store     *store.FileStore
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		writer:   &stubWriter{script: fourScenes()},
		narrator: &stubNarrator{},
		composer: &stubComposer{path: filepath.Join(root, "final_video.mp4")},
		store:    store.NewFileStore(filepath.Join(root, "runs")),
	}
	f.deps = Deps{
		Writer:     f.writer,
		Controller: script.NewController(f.writer, script.DefaultEstimator(), nil),
		Narrator:   f.narrator,
		Prober:     stubProber{duration: 30},
		Timeline:   timeline.NewSynthesizer(nil, timeline.DefaultDefaults(), nil),
		Composer:   f.composer,
		Store:      f.store,
		Upload:     config.Default().Upload,
		RunsDir:    f.store.Root,
		LogsDir:    filepath.Join(root, "logs"),
		NewID:      func() string { return "run00001" },
		Now:        func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) },
	}
	return f
}

func TestRunCompletesAllStages(t *testing.T) {
	f := newFixture(t)
	p := New(f.deps)

	st, err := p.Run(context.Background(), Input{Events: crashEvents, Report: "상대 과실 100%.", VideoPath: "clip.mp4"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Status != types.RunCompleted || st.Error != "" {
		t.Fatalf("status = %s, error = %q", st.Status, st.Error)
	}
	if st.Convergence == nil || st.Convergence.State != "converged" || st.Convergence.TargetSec != 4.0 {
		t.Errorf("convergence = %+v", st.Convergence)
	}
	if f.narrator.outDir != filepath.Join(f.store.Root, "run00001", "audio") {
		t.Errorf("audio dir = %s", f.narrator.outDir)
	}
	if f.composer.got == nil || len(f.composer.got.Scenes) != 4 || f.composer.got.VideoSourcePath != "clip.mp4" {
		t.Fatalf("composer timeline = %+v", f.composer.got)
	}
	if !f.composer.got.Fallback {
		t.Error("timeline without placer should be an equal split")
	}
	if st.VideoFile != f.composer.path {
		t.Errorf("video file = %s", st.VideoFile)
	}

	saved, err := f.store.Load(context.Background(), "run00001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.Status != types.RunCompleted || saved.CompletedAt == "" || saved.Timeline == nil {
		t.Errorf("saved state = %+v", saved)
	}
	for _, name := range []string{"script.json", "timeline.json"} {
		if _, err := os.Stat(filepath.Join(f.store.Root, "run00001", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestRunRecordsStageError(t *testing.T) {
	f := newFixture(t)
	f.composer.err = errors.New("no clips rendered")
	p := New(f.deps)

	st, err := p.Run(context.Background(), Input{Events: crashEvents, VideoPath: "clip.mp4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Status != types.RunFailed {
		t.Errorf("status = %s", st.Status)
	}
	if st.Error != "Stage 5 Render: no clips rendered" {
		t.Errorf("error = %q", st.Error)
	}
	saved, err := f.store.Load(context.Background(), st.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Error != st.Error || saved.Stage != "Render" {
		t.Errorf("saved error = %q stage = %q", saved.Error, saved.Stage)
	}
}

func TestRunScriptFailureStopsEarly(t *testing.T) {
	f := newFixture(t)
	f.writer.err = errors.New("model unavailable")
	p := New(f.deps)

	st, err := p.Run(context.Background(), Input{VideoPath: "clip.mp4"})
	if err == nil || !strings.HasPrefix(st.Error, "Stage 1 Script:") {
		t.Fatalf("err = %v, state error = %q", err, st.Error)
	}
	if f.narrator.outDir != "" || f.composer.got != nil {
		t.Error("later stages must not run")
	}
}

func TestRunWithoutVideoIsRejected(t *testing.T) {
	p := New(newFixture(t).deps)
	if _, err := p.Run(context.Background(), Input{}); !errors.Is(err, ErrNoVideo) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunCancelledBetweenStages(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.writer.script = fourScenes()
	p := New(f.deps)
	st, err := p.NewState(ctx, Input{Events: crashEvents, VideoPath: "clip.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	err = p.Execute(ctx, st, Input{Events: crashEvents, VideoPath: "clip.mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if f.composer.got != nil {
		t.Error("render must not run after cancellation")
	}
	saved, err := f.store.Load(context.Background(), st.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Status != types.RunFailed {
		t.Errorf("saved status = %s", saved.Status)
	}
}

func TestRunPublishes(t *testing.T) {
	f := newFixture(t)
	f.publisher = &stubPublisher{}
	f.deps.Publisher = f.publisher
	p := New(f.deps)

	st, err := p.Run(context.Background(), Input{Events: crashEvents, VideoPath: "clip.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	if st.YouTubeID != "vid1" || f.publisher.md == nil || f.publisher.md.Title != "Accident Review" {
		t.Errorf("youtube id = %q metadata = %+v", st.YouTubeID, f.publisher.md)
	}
	logs, _ := filepath.Glob(filepath.Join(f.deps.LogsDir, "upload_*.json"))
	if len(logs) != 1 {
		t.Errorf("upload logs = %v", logs)
	}
}

func TestRunUploadFailureKeepsVideo(t *testing.T) {
	f := newFixture(t)
	f.deps.Publisher = &stubPublisher{err: errors.New("quota exceeded")}
	p := New(f.deps)

	st, err := p.Run(context.Background(), Input{Events: crashEvents, VideoPath: "clip.mp4"})
	if err != nil {
		t.Fatalf("upload failure must not fail the run: %v", err)
	}
	if st.Status != types.RunCompleted || st.VideoFile == "" || st.YouTubeID != "" {
		t.Errorf("state = %+v", st)
	}
}
