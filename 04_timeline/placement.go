package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crash-review-pipeline/llm"
	"crash-review-pipeline/types"
)

var ErrUnparsable = errors.New("unparsable placement response")

// Placer maps each scene to a region of the footage and returns the raw
// model reply. Parsing and repair happen here, not in the Placer.
type Placer interface {
	Place(ctx context.Context, req PlacementRequest) (string, error)
}

type PlacementRequest struct {
	VideoPath string
	Footage   types.FootageMeta
	Scenes    []PlacementScene
}

type PlacementScene struct {
	SceneID   int     `json:"scene_id"`
	Narration string  `json:"narration"`
	Visual    string  `json:"description,omitempty"`
	AudioFile string  `json:"tts_audio_file"`
	Duration  float64 `json:"tts_duration_sec"`
}

// Draft is a parsed placement before validation. Pointer fields are nil
// when the model left them out.
type Draft struct {
	Title            string
	Liability        *RawLiability
	SummaryNarration string
	Scenes           []DraftScene
	Outro            *RawOutro
}

type DraftScene struct {
	SceneID     int
	StartSec    *float64
	Padding     *float64
	Description string
	Overlay     *types.TextOverlay
}

// RawLiability accepts both the dashcam/other and car/bicycle spellings
type RawLiability struct {
	Dashcam *int `json:"dashcam"`
	Other   *int `json:"other"`
	Car     *int `json:"car"`
	Bicycle *int `json:"bicycle"`
}

type RawOutro struct {
	Duration   *float64 `json:"duration"`
	Background []int    `json:"background_color"`
	Text       string   `json:"text"`
}

type placementJSON struct {
	Title            string        `json:"title"`
	Liability        *RawLiability `json:"final_liability_ratio"`
	SummaryNarration string        `json:"summary_narration"`
	Scenes           []struct {
		SceneID     int    `json:"scene_id"`
		Description string `json:"description"`
		Timestamp   *struct {
			StartSec *float64 `json:"start_sec"`
		} `json:"source_video_timestamp"`
		StartSec    *float64           `json:"start_sec"`
		Padding     *float64           `json:"visual_padding_sec"`
		TextOverlay *types.TextOverlay `json:"text_overlay"`
	} `json:"scenes"`
	Outro *RawOutro `json:"outro"`
}

// ParsePlacement decodes a placer reply. A reply with no JSON object is
// ErrUnparsable; a missing scenes array is not.
func ParsePlacement(raw string) (*Draft, error) {
	content := llm.CleanJSON(raw)
	var p placementJSON
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		fixed := llm.ExtractFirstJSONObject(content)
		if fixed == "" {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		if err := json.Unmarshal([]byte(fixed), &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
	}
	d := &Draft{
		Title:            p.Title,
		Liability:        p.Liability,
		SummaryNarration: p.SummaryNarration,
		Outro:            p.Outro,
		Scenes:           []DraftScene{},
	}
	for _, s := range p.Scenes {
		ds := DraftScene{
			SceneID:     s.SceneID,
			StartSec:    s.StartSec,
			Padding:     s.Padding,
			Description: s.Description,
			Overlay:     s.TextOverlay,
		}
		if s.Timestamp != nil && s.Timestamp.StartSec != nil {
			ds.StartSec = s.Timestamp.StartSec
		}
		d.Scenes = append(d.Scenes, ds)
	}
	return d, nil
}
