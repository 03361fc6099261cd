package render

import (
	"math"

	"crash-review-pipeline/types"
)

// DefaultSceneSec stands in when a scene has neither measured nor estimated speech
const DefaultSceneSec = 5.0

// ScenePlan is the footage window for one scene. Extract seconds come from
// the source starting at Start; Freeze seconds of held last frame follow.
type ScenePlan struct {
	Start    float64
	Extract  float64
	Freeze   float64
	Required float64
}

// AudioPlan aligns a narration asset to the clip length
type AudioPlan struct {
	Silent   bool
	Pad      float64
	Trim     float64
	Duration float64
}

// Required is the speech length plus padding for a scene
func Required(sc types.Scene) float64 {
	speech := sc.ActualDuration
	if speech <= 0 {
		speech = sc.EstimatedDuration
	}
	if speech <= 0 {
		speech = DefaultSceneSec
	}
	return speech + math.Max(0, sc.Padding)
}

// PlanScene windows [offset, min(offset+required, footage)] and freezes the
// rest. An offset past the end is pulled back so the window fits. A
// footage length of zero means unknown and nothing is clamped.
func PlanScene(sc types.Scene, footage float64) ScenePlan {
	req := Required(sc)
	start := math.Max(0, sc.SourceOffset)
	if footage <= 0 {
		return ScenePlan{Start: start, Extract: req, Required: req}
	}
	if start >= footage {
		start = math.Max(0, footage-req)
	}
	extract := math.Min(start+req, footage) - start
	return ScenePlan{
		Start:    start,
		Extract:  extract,
		Freeze:   math.Max(0, req-extract),
		Required: req,
	}
}

// PlanAudio pads a short asset with silence and trims a long one. A
// missing or unreadable asset (exists false) becomes pure silence.
func PlanAudio(assetDur, required float64, exists bool) AudioPlan {
	if !exists || assetDur <= 0 {
		return AudioPlan{Silent: true, Pad: required, Duration: required}
	}
	p := AudioPlan{Duration: required}
	switch {
	case assetDur < required:
		p.Pad = required - assetDur
	case assetDur > required:
		p.Trim = assetDur - required
	}
	return p
}
