package timeline

import (
	"fmt"
	"math"
	"strings"

	"crash-review-pipeline/types"
)

const (
	DefaultPadding       = 0.5
	DefaultOutroDuration = 3.0
	DefaultOutroText     = "Drive safe!"
	DefaultFontSize      = 35
)

// Positions is the caption anchor vocabulary
var Positions = map[string]bool{
	"center":        true,
	"top_left":      true,
	"top_center":    true,
	"top_right":     true,
	"bottom_left":   true,
	"bottom_center": true,
	"bottom_right":  true,
}

// Defaults fill whatever the placement left out
type Defaults struct {
	Title         string
	Padding       float64
	FontSize      int
	OutroDuration float64
	OutroText     string
}

// DefaultDefaults returns the padding, caption and outro values used when a draft omits them
func DefaultDefaults() Defaults {
	return Defaults{
		Title:         "Accident Review",
		Padding:       DefaultPadding,
		FontSize:      DefaultFontSize,
		OutroDuration: DefaultOutroDuration,
		OutroText:     DefaultOutroText,
	}
}

// Repair builds a valid Timeline from a draft placement. Narration, audio
// and durations always come from records; the draft only contributes
// offsets, padding, captions and the outro. Scene ids come out dense 1..N
// in record order, and every scene satisfies
// source_offset + duration + padding <= footage duration when the footage
// is long enough to hold it.
func Repair(d *Draft, records []types.SceneAudio, meta types.FootageMeta, def Defaults) *types.Timeline {
	if d == nil {
		d = &Draft{}
	}
	def = def.withFallbacks()
	tl := &types.Timeline{
		VideoSourcePath:  meta.Path,
		Title:            strings.TrimSpace(d.Title),
		SummaryNarration: strings.TrimSpace(d.SummaryNarration),
		Footage:          meta,
		Scenes:           make([]types.Scene, 0, len(records)),
	}
	if tl.Title == "" {
		tl.Title = def.Title
	}
	tl.FinalLiabilityRatio = repairLiability(d.Liability)
	tl.Outro = repairOutro(d.Outro, def)

	byID := make(map[int]DraftScene, len(d.Scenes))
	for _, ds := range d.Scenes {
		if ds.SceneID > 0 {
			if _, dup := byID[ds.SceneID]; !dup {
				byID[ds.SceneID] = ds
			}
		}
	}
	for i, rec := range records {
		ds, ok := byID[rec.SceneID]
		if !ok && i < len(d.Scenes) && d.Scenes[i].SceneID <= 0 {
			ds = d.Scenes[i]
		}
		sc := types.Scene{
			SceneID:           i + 1,
			Narration:         rec.Narration,
			VisualDescription: rec.Visual,
			EstimatedDuration: nonNeg(rec.Estimated),
			ActualDuration:    nonNeg(rec.Duration),
			AudioFile:         rec.AudioPath,
			AudioError:        rec.Error,
			Padding:           def.Padding,
		}
		if sc.VisualDescription == "" {
			sc.VisualDescription = ds.Description
		}
		if ds.Padding != nil && !math.IsNaN(*ds.Padding) {
			sc.Padding = nonNeg(*ds.Padding)
		}
		if ds.StartSec != nil {
			sc.SourceOffset = *ds.StartSec
		}
		sc.TextOverlay = repairOverlay(ds.Overlay, i+1, def)
		clampScene(&sc, meta.Duration)
		tl.Scenes = append(tl.Scenes, sc)
	}
	return tl
}

// clampScene enforces offset + duration + padding <= footage. When the
// speech alone does not fit, padding is trimmed first and the offset goes
// to zero.
func clampScene(sc *types.Scene, footage float64) {
	if math.IsNaN(sc.SourceOffset) || sc.SourceOffset < 0 {
		sc.SourceOffset = 0
	}
	if footage <= 0 {
		sc.SourceOffset = 0
		return
	}
	speech := sc.Duration()
	if sc.SourceOffset >= footage {
		sc.SourceOffset = math.Max(0, footage-(speech+sc.Padding))
	}
	if sc.SourceOffset+speech+sc.Padding <= footage {
		return
	}
	if speech+sc.Padding <= footage {
		sc.SourceOffset = footage - speech - sc.Padding
		return
	}
	sc.SourceOffset = 0
	sc.Padding = math.Max(0, footage-speech)
}

func repairOverlay(ov *types.TextOverlay, id int, def Defaults) *types.TextOverlay {
	out := types.TextOverlay{
		Text:        fmt.Sprintf("scene %d", id),
		Position:    "bottom_center",
		FontSize:    def.FontSize,
		Color:       "white",
		StrokeColor: "black",
		StrokeWidth: 2,
	}
	if ov == nil {
		return &out
	}
	if t := strings.TrimSpace(ov.Text); t != "" {
		out.Text = t
	}
	if Positions[ov.Position] {
		out.Position = ov.Position
	}
	if ov.FontSize > 0 {
		out.FontSize = ov.FontSize
	}
	if ov.Color != "" {
		out.Color = ov.Color
	}
	if ov.StrokeColor != "" {
		out.StrokeColor = ov.StrokeColor
	}
	if ov.StrokeWidth > 0 {
		out.StrokeWidth = ov.StrokeWidth
	}
	return &out
}

// repairLiability returns two non-negative ints summing to 100; 0/100 when
// nothing usable was given.
func repairLiability(l *RawLiability) types.LiabilityRatio {
	if l == nil {
		return types.LiabilityRatio{Dashcam: 0, Other: 100}
	}
	pick := func(a, b *int) int {
		switch {
		case a != nil:
			return max(0, *a)
		case b != nil:
			return max(0, *b)
		}
		return 0
	}
	dash := pick(l.Dashcam, l.Car)
	other := pick(l.Other, l.Bicycle)
	sum := dash + other
	if sum == 0 {
		return types.LiabilityRatio{Dashcam: 0, Other: 100}
	}
	if sum != 100 {
		dash = int(math.Round(float64(dash) * 100 / float64(sum)))
		other = 100 - dash
	}
	return types.LiabilityRatio{Dashcam: dash, Other: other}
}

func repairOutro(o *RawOutro, def Defaults) types.Outro {
	out := types.Outro{Duration: def.OutroDuration, Text: def.OutroText}
	if o == nil {
		return out
	}
	if o.Duration != nil && *o.Duration > 0 && !math.IsInf(*o.Duration, 0) {
		out.Duration = *o.Duration
	}
	if t := strings.TrimSpace(o.Text); t != "" {
		out.Text = t
	}
	if len(o.Background) == 3 {
		for i, c := range o.Background {
			out.Background[i] = min(255, max(0, c))
		}
	}
	return out
}

func (d Defaults) withFallbacks() Defaults {
	if d.Padding < 0 {
		d.Padding = DefaultPadding
	}
	if d.FontSize <= 0 {
		d.FontSize = DefaultFontSize
	}
	if d.OutroDuration <= 0 {
		d.OutroDuration = DefaultOutroDuration
	}
	if d.OutroText == "" {
		d.OutroText = DefaultOutroText
	}
	return d
}

func nonNeg(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
