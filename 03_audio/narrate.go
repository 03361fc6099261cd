package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"crash-review-pipeline/store"
	"crash-review-pipeline/types"
)

const ManifestFileName = "tts_manifest.json"

// secondsPerRune is the rough fallback when an asset cannot be measured
const secondsPerRune = 0.1

// DefaultCallTimeout bounds one speech request
const DefaultCallTimeout = 60 * time.Second

var errNoSynthesizer = errors.New("no speech engine configured")

// DurationProber measures an audio asset
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Narrator synthesizes every scene and writes tts_manifest.json
type Narrator struct {
	Synth       Synthesizer
	Prober      DurationProber
	CallTimeout time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewNarrator creates a Narrator with the default per-call timeout
func NewNarrator(synth Synthesizer, prober DurationProber, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{Synth: synth, Prober: prober, CallTimeout: DefaultCallTimeout, Logger: logger, Now: time.Now}
}

// Run never fails for a single scene: the row gets Duration 0 and an Error
// instead. Only cancellation aborts.
func (n *Narrator) Run(ctx context.Context, script *types.Script, outDir string) (*types.Manifest, error) {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("stage", "audio"))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	m := &types.Manifest{OriginalScript: script.Clone()}
	var total float64
	for i, sc := range script.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		narr := strings.TrimSpace(sc.Narration)
		if narr == "" {
			continue
		}
		id := sc.SceneID
		if id <= 0 {
			id = i + 1
		}
		row := types.SceneAudio{SceneID: id, Narration: narr, Visual: sc.VisualDescription, Estimated: sc.EstimatedDuration}
		outFile := filepath.Join(outDir, fmt.Sprintf("scene%02d.mp3", id))

		if err := n.synthesize(ctx, narr, outFile); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			os.Remove(outFile)
			row.Error = err.Error()
			log.Warn("scene synthesis failed", zap.Int("scene", id), zap.Error(err))
			m.SceneAudioFiles = append(m.SceneAudioFiles, row)
			continue
		}

		row.AudioPath = outFile
		row.Duration = n.measure(ctx, outFile, narr, log)
		total += row.Duration
		log.Info("scene audio ready", zap.Int("scene", id), zap.Float64("duration", row.Duration), zap.String("file", outFile))
		m.SceneAudioFiles = append(m.SceneAudioFiles, row)
	}

	m.TotalDuration = round3(total)
	m.GeneratedAt = n.now().Format(time.RFC3339)
	path := filepath.Join(outDir, ManifestFileName)
	if err := store.WriteJSONAtomic(path, m); err != nil {
		log.Warn("manifest not written", zap.Error(err))
	} else {
		m.ManifestPath = path
	}
	return m, nil
}

func (n *Narrator) synthesize(ctx context.Context, text, outFile string) error {
	if n.Synth == nil {
		return errNoSynthesizer
	}
	if n.CallTimeout <= 0 {
		return n.Synth.Synthesize(ctx, text, outFile)
	}
	callCtx, cancel := context.WithTimeout(ctx, n.CallTimeout)
	defer cancel()
	err := n.Synth.Synthesize(callCtx, text, outFile)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("speech timed out after %s: %w", n.CallTimeout, err)
	}
	return err
}

func (n *Narrator) measure(ctx context.Context, path, narration string, log *zap.Logger) float64 {
	if n.Prober != nil {
		d, err := n.Prober.Duration(ctx, path)
		if err == nil && d > 0 {
			return round3(d)
		}
		log.Warn("could not measure audio, estimating from text", zap.String("file", path), zap.Error(err))
	}
	return EstimateFromText(narration)
}

func (n *Narrator) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// EstimateFromText is the measurement fallback: 0.1 s per character
func EstimateFromText(narration string) float64 {
	return round3(float64(utf8.RuneCountInString(narration)) * secondsPerRune)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
