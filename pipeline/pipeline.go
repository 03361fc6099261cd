package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"crash-review-pipeline/02_script"
	"crash-review-pipeline/06_upload"
	"crash-review-pipeline/config"
	"crash-review-pipeline/store"
	"crash-review-pipeline/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoVideo = errors.New("video path is required")

// Input is what one run starts from: the upstream event analysis, the legal
// report text and the dashcam clip.
type Input struct {
	Events    []types.Event `json:"events"`
	Report    string        `json:"report"`
	VideoPath string        `json:"video_path"`
}

type Narrator interface {
	Run(ctx context.Context, script *types.Script, outDir string) (*types.Manifest, error)
}

type FootageProber interface {
	Probe(ctx context.Context, path string) types.FootageMeta
}

type TimelineSynthesizer interface {
	Synthesize(ctx context.Context, records []types.SceneAudio, meta types.FootageMeta) *types.Timeline
}

type Composer interface {
	Compose(ctx context.Context, tl *types.Timeline) (string, error)
}

type Publisher interface {
	Run(ctx context.Context, videoFile string, md *upload.Metadata) (string, string, error)
}

// Deps wires every stage. Controller and Publisher are optional: without a
// controller the first draft is narrated as is, without a publisher the run
// ends at the rendered file.
type Deps struct {
	Writer     script.Generator
	Controller *script.Controller
	Narrator   Narrator
	Prober     FootageProber
	Timeline   TimelineSynthesizer
	Composer   Composer
	Publisher  Publisher
	Store      store.Store

	Upload  config.UploadConfig
	RunsDir string
	LogsDir string
	Logger  *zap.Logger
	NewID   func() string
	Now     func() time.Time
}

type Pipeline struct {
	d Deps
}

// New creates a new Pipeline, filling in id, clock and logger defaults
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.NewString()[:8] }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Pipeline{d: d}
}

// NewState registers a pending run and persists it so callers can poll it
// before Execute starts.
func (p *Pipeline) NewState(ctx context.Context, in Input) (*types.PipelineState, error) {
	if in.VideoPath == "" {
		return nil, ErrNoVideo
	}
	st := &types.PipelineState{
		RunID:     p.d.NewID(),
		Status:    types.RunPending,
		StartedAt: p.d.Now().UTC().Format(time.RFC3339Nano),
		VideoPath: in.VideoPath,
		Events:    in.Events,
	}
	if p.d.Store != nil {
		if err := p.d.Store.Save(ctx, st); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
	}
	return st, nil
}

// Run is NewState followed by Execute.
func (p *Pipeline) Run(ctx context.Context, in Input) (*types.PipelineState, error) {
	st, err := p.NewState(ctx, in)
	if err != nil {
		return nil, err
	}
	return st, p.Execute(ctx, st, in)
}

// Execute runs every stage in order, saving st after each one. The returned
// error is also recorded in st.Error as "Stage N <name>: <cause>".
func (p *Pipeline) Execute(ctx context.Context, st *types.PipelineState, in Input) (err error) {
	log := p.d.Logger.With(zap.String("run_id", st.RunID))
	runDir := filepath.Join(p.d.RunsDir, st.RunID)
	st.Status = types.RunRunning
	p.save(ctx, st, log)

	defer func() {
		st.CompletedAt = p.d.Now().UTC().Format(time.RFC3339Nano)
		if err != nil {
			st.Status = types.RunFailed
			st.Error = err.Error()
			log.Error("pipeline failed", zap.String("stage", st.Stage), zap.Error(err))
		} else {
			st.Status = types.RunCompleted
			log.Info("pipeline complete", zap.String("video", st.VideoFile), zap.String("youtube_url", st.YouTubeURL))
		}
		// the caller's ctx may already be cancelled; the final state must still land
		p.save(context.WithoutCancel(ctx), st, log)
	}()

	stage := func(n int, name string) (func(error) error, func()) {
		st.Stage = name
		started := time.Now()
		log.Info("stage started", zap.Int("n", n), zap.String("stage", name))
		fail := func(cause error) error {
			return fmt.Errorf("Stage %d %s: %w", n, name, cause)
		}
		done := func() {
			log.Info("stage finished", zap.String("stage", name), zap.Duration("elapsed", time.Since(started)))
			p.save(ctx, st, log)
		}
		return fail, done
	}

	// Stage 1: first draft
	fail, done := stage(1, "Script")
	req := script.Request{Events: in.Events, Report: in.Report}
	draft, err := p.d.Writer.Generate(ctx, req)
	if err != nil {
		return fail(err)
	}
	if draft == nil || len(draft.Scenes) == 0 {
		return fail(errors.New("generator returned no scenes"))
	}
	st.Script = draft
	done()

	// Stage 2: fit the first cue to the critical event
	fail, done = stage(2, "Convergence")
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if p.d.Controller != nil {
		res, err := p.d.Controller.Converge(ctx, draft, req)
		if err != nil {
			return fail(err)
		}
		st.Script = res.Script
		st.Convergence = res.Report()
	}
	p.saveJSON(filepath.Join(runDir, "script.json"), st.Script, log)
	done()

	// Stage 3: speech
	fail, done = stage(3, "Audio")
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	manifest, err := p.d.Narrator.Run(ctx, st.Script, filepath.Join(runDir, "audio"))
	if err != nil {
		return fail(err)
	}
	st.Manifest = manifest
	done()

	// Stage 4: placement
	fail, done = stage(4, "Timeline")
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	meta := p.d.Prober.Probe(ctx, in.VideoPath)
	tl := p.d.Timeline.Synthesize(ctx, manifest.SceneAudioFiles, meta)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	st.Timeline = tl
	p.saveJSON(filepath.Join(runDir, "timeline.json"), tl, log)
	done()

	// Stage 5: render
	fail, done = stage(5, "Render")
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	video, err := p.d.Composer.Compose(ctx, tl)
	if err != nil {
		return fail(err)
	}
	st.VideoFile = video
	done()

	if p.d.Publisher == nil {
		return nil
	}

	// Stage 6: publish. The rendered file is the deliverable, so a failed
	// upload is reported but does not fail the run.
	_, done = stage(6, "Upload")
	md := upload.BuildMetadata(tl, p.d.Upload)
	p.saveJSON(filepath.Join(runDir, "metadata.json"), md, log)
	id, url, uerr := p.d.Publisher.Run(ctx, video, md)
	if uerr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("Stage 6 Upload: %w", ctx.Err())
		}
		log.Warn("upload failed, keeping local video", zap.Error(uerr))
		done()
		return nil
	}
	st.YouTubeID = id
	st.YouTubeURL = url
	if p.d.LogsDir != "" {
		if _, err := upload.LogUpload(p.d.LogsDir, id, url, video, md, p.d.Now()); err != nil {
			log.Warn("upload log not written", zap.Error(err))
		}
	}
	done()
	return nil
}

func (p *Pipeline) save(ctx context.Context, st *types.PipelineState, log *zap.Logger) {
	if p.d.Store == nil {
		return
	}
	if err := p.d.Store.Save(ctx, st); err != nil {
		log.Warn("could not save run state", zap.Error(err))
	}
}

func (p *Pipeline) saveJSON(path string, v any, log *zap.Logger) {
	if err := store.WriteJSONAtomic(path, v); err != nil {
		log.Warn("could not save artifact", zap.String("path", path), zap.Error(err))
	}
}
