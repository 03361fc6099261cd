package timeline

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"crash-review-pipeline/types"
)

// Synthesizer turns synthesized scenes and footage metadata into a
// Timeline. It never fails: placement problems fall back to an equal split.
type Synthesizer struct {
	Placer      Placer
	Defaults    Defaults
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// NewSynthesizer creates a Synthesizer; a nil placer always takes the equal split
func NewSynthesizer(p Placer, def Defaults, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{Placer: p, Defaults: def, CallTimeout: 90 * time.Second, Logger: logger}
}

// Synthesize places records on the footage, falling back to the equal split
// whenever placement fails or cannot be parsed.
func (s *Synthesizer) Synthesize(ctx context.Context, records []types.SceneAudio, meta types.FootageMeta) *types.Timeline {
	log := s.logger().With(zap.String("stage", "timeline"))
	if s.Placer == nil {
		log.Info("no placer configured, using equal split")
		return Fallback(records, meta, s.Defaults)
	}
	if meta.Duration <= 0 {
		log.Warn("footage duration unknown, using equal split", zap.String("probe_error", meta.Error))
		return Fallback(records, meta, s.Defaults)
	}

	req := PlacementRequest{VideoPath: meta.Path, Footage: meta}
	for _, r := range records {
		req.Scenes = append(req.Scenes, PlacementScene{
			SceneID:   r.SceneID,
			Narration: r.Narration,
			Visual:    r.Visual,
			AudioFile: r.AudioPath,
			Duration:  r.Duration,
		})
	}

	callCtx := ctx
	if s.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.CallTimeout)
		defer cancel()
	}
	raw, err := s.Placer.Place(callCtx, req)
	if err != nil {
		log.Warn("placement failed, using equal split", zap.Error(err))
		return Fallback(records, meta, s.Defaults)
	}
	draft, err := ParsePlacement(raw)
	if err != nil {
		log.Warn("placement unparsable, using equal split", zap.Error(err), zap.Int("raw_len", len(raw)))
		return Fallback(records, meta, s.Defaults)
	}
	tl := Repair(draft, records, meta, s.Defaults)
	log.Info("timeline placed", zap.Int("scenes", len(tl.Scenes)), zap.Float64("footage", meta.Duration))
	return tl
}

func (s *Synthesizer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Fallback splits the footage into N equal regions: offset i = i*D/N,
// capped at D-1 and never negative. The result goes through the same
// Repair as placed timelines and offsets stay non-decreasing.
func Fallback(records []types.SceneAudio, meta types.FootageMeta, def Defaults) *types.Timeline {
	n := len(records)
	draft := &Draft{Title: def.Title, Scenes: make([]DraftScene, n)}
	for i := range records {
		off := 0.0
		if meta.Duration > 0 {
			off = float64(i) * meta.Duration / float64(n)
			off = math.Max(0, math.Min(off, meta.Duration-1))
		}
		draft.Scenes[i] = DraftScene{StartSec: &off}
	}
	tl := Repair(draft, records, meta, def)
	for i := len(tl.Scenes) - 2; i >= 0; i-- {
		if tl.Scenes[i].SourceOffset > tl.Scenes[i+1].SourceOffset {
			tl.Scenes[i].SourceOffset = tl.Scenes[i+1].SourceOffset
		}
	}
	tl.Fallback = true
	return tl
}
