package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"crash-review-pipeline/media"
	"crash-review-pipeline/types"
)

var (
	ErrNoClips        = errors.New("no scene clips survived composition")
	ErrFootageMissing = errors.New("source footage missing")
)

// DurationProber measures narration assets and footage
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Composer renders a Timeline into one video: scene clips in parallel,
// then outro and concat in sequence.
type Composer struct {
	Runner        media.Runner
	Prober        DurationProber
	FFmpeg        string
	Workers       int
	Width         int
	Height        int
	FPS           int
	Font          string
	OutroFontSize int
	OutputDir     string
	Prefix        string
	Container     string
	TempRoot      string
	Subtitles     bool
	Now           func() time.Time
	Logger        *zap.Logger
}

// NewComposer creates a Composer rendering 1920x1080 at 30 fps with two workers
func NewComposer(runner media.Runner, prober DurationProber, outputDir string, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		Runner:        runner,
		Prober:        prober,
		FFmpeg:        "ffmpeg",
		Workers:       2,
		Width:         1920,
		Height:        1080,
		FPS:           30,
		OutroFontSize: 60,
		OutputDir:     outputDir,
		Prefix:        "final_video",
		Container:     "mp4",
		Subtitles:     true,
		Now:           time.Now,
		Logger:        logger,
	}
}

// Compose renders tl and returns the artifact path. Missing footage, zero
// surviving clips and a failed final concat are errors; anything else
// degrades the result instead.
func (c *Composer) Compose(ctx context.Context, tl *types.Timeline) (string, error) {
	log := c.logger().With(zap.String("stage", "render"))
	if tl == nil || tl.VideoSourcePath == "" {
		return "", ErrFootageMissing
	}
	if _, err := os.Stat(tl.VideoSourcePath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFootageMissing, tl.VideoSourcePath)
	}
	footage := tl.Footage.Duration
	if footage <= 0 && c.Prober != nil {
		if d, err := c.Prober.Duration(ctx, tl.VideoSourcePath); err == nil {
			footage = d
		}
	}

	tmp, err := os.MkdirTemp(c.TempRoot, "compose-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	clips := c.renderScenes(ctx, tl, footage, tmp, log)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var list []string
	for _, clip := range clips {
		if clip != "" {
			list = append(list, clip)
		}
	}
	if len(list) == 0 {
		return "", ErrNoClips
	}

	if outro, err := c.renderOutro(ctx, tl.Outro, tmp); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("outro failed, finishing without it", zap.Error(err))
	} else {
		list = append(list, outro)
	}

	out, err := c.concat(ctx, list, tmp)
	if err != nil {
		return "", err
	}
	if c.Subtitles {
		if srt, err := c.writeSubtitles(out, tl.Scenes, clips); err != nil {
			log.Warn("subtitles not written", zap.Error(err))
		} else if srt != "" {
			log.Info("subtitles written", zap.String("file", srt))
		}
	}
	log.Info("video composed", zap.String("file", out), zap.Int("clips", len(list)), zap.Int("scenes", len(tl.Scenes)))
	return out, nil
}

// renderScenes fills one slot per scene; a failed scene leaves its slot empty.
func (c *Composer) renderScenes(ctx context.Context, tl *types.Timeline, footage float64, tmp string, log *zap.Logger) []string {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	clips := make([]string, len(tl.Scenes))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, sc := range tl.Scenes {
		wg.Add(1)
		go func(i int, sc types.Scene) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			clip, err := c.renderScene(ctx, i, sc, tl.VideoSourcePath, footage, tmp, log)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("scene dropped", zap.Int("scene", sc.SceneID), zap.Error(err))
				}
				return
			}
			clips[i] = clip
		}(i, sc)
	}
	wg.Wait()
	return clips
}

func (c *Composer) renderScene(ctx context.Context, idx int, sc types.Scene, src string, footage float64, tmp string, log *zap.Logger) (string, error) {
	sp := PlanScene(sc, footage)
	if sp.Extract <= 0 {
		return "", fmt.Errorf("scene %d: empty footage window", sc.SceneID)
	}

	audioPath, ap := c.planAudio(ctx, sc, sp.Required)
	if ap.Silent && sc.AudioFile != "" {
		log.Warn("narration unreadable, using silence", zap.Int("scene", sc.SceneID), zap.String("file", sc.AudioFile))
	}

	out := filepath.Join(tmp, fmt.Sprintf("clip_%03d.mp4", idx))
	var caption string
	var style *overlayStyle
	if ov := sc.TextOverlay; ov != nil && strings.TrimSpace(ov.Text) != "" {
		caption = filepath.Join(tmp, fmt.Sprintf("caption_%03d.txt", idx))
		if err := os.WriteFile(caption, []byte(ov.Text), 0o644); err != nil {
			caption = ""
		}
		style = &overlayStyle{
			Position:    ov.Position,
			FontSize:    ov.FontSize,
			Color:       ov.Color,
			StrokeColor: ov.StrokeColor,
			StrokeWidth: ov.StrokeWidth,
		}
	}

	err := c.Runner.Run(ctx, c.ffmpeg(), c.sceneArgs(src, audioPath, sp, ap, caption, style, out)...)
	if err != nil && caption != "" && ctx.Err() == nil {
		log.Warn("caption failed, retrying without it", zap.Int("scene", sc.SceneID), zap.Error(err))
		err = c.Runner.Run(ctx, c.ffmpeg(), c.sceneArgs(src, audioPath, sp, ap, "", nil, out)...)
	}
	if err != nil {
		os.Remove(out)
		return "", err
	}
	log.Debug("scene rendered",
		zap.Int("scene", sc.SceneID),
		zap.Float64("start", sp.Start),
		zap.Float64("required", sp.Required),
		zap.Float64("freeze", sp.Freeze),
		zap.Float64("audio_pad", ap.Pad),
	)
	return out, nil
}

func (c *Composer) planAudio(ctx context.Context, sc types.Scene, required float64) (string, AudioPlan) {
	if sc.AudioFile == "" {
		return "", PlanAudio(0, required, false)
	}
	if _, err := os.Stat(sc.AudioFile); err != nil {
		return "", PlanAudio(0, required, false)
	}
	dur := sc.ActualDuration
	if c.Prober != nil {
		d, err := c.Prober.Duration(ctx, sc.AudioFile)
		if err != nil {
			return "", PlanAudio(0, required, false)
		}
		dur = d
	}
	return sc.AudioFile, PlanAudio(dur, required, true)
}

func (c *Composer) renderOutro(ctx context.Context, o types.Outro, tmp string) (string, error) {
	dur := o.Duration
	if dur <= 0 {
		dur = 3.0
	}
	var caption string
	if strings.TrimSpace(o.Text) != "" {
		caption = filepath.Join(tmp, "caption_outro.txt")
		if err := os.WriteFile(caption, []byte(o.Text), 0o644); err != nil {
			caption = ""
		}
	}
	out := filepath.Join(tmp, "outro.mp4")
	if err := c.Runner.Run(ctx, c.ffmpeg(), c.outroArgs(o.Background, dur, caption, out)...); err != nil {
		return "", fmt.Errorf("outro: %w", err)
	}
	return out, nil
}

func (c *Composer) concat(ctx context.Context, clips []string, tmp string) (string, error) {
	lines := make([]string, len(clips))
	for i, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			abs = clip
		}
		lines[i] = concatLine(abs)
	}
	listFile := filepath.Join(tmp, "concat_list.txt")
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	out := c.OutputPath()
	if err := c.Runner.Run(ctx, c.ffmpeg(), concatArgs(listFile, out)...); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("final encode: %w", err)
	}
	return out, nil
}

// OutputPath is <dir>/<prefix>_<YYYYMMDD_HHMMSS>.<container>
func (c *Composer) OutputPath() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	prefix := orDefault(c.Prefix, "final_video")
	container := orDefault(strings.TrimPrefix(c.Container, "."), "mp4")
	return filepath.Join(c.OutputDir, fmt.Sprintf("%s_%s.%s", prefix, now().Format("20060102_150405"), container))
}

func (c *Composer) ffmpeg() string {
	return orDefault(c.FFmpeg, "ffmpeg")
}

func (c *Composer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
