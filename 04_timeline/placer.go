package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"crash-review-pipeline/llm"
)

const placementSystemPrompt = `You are a video editing assistant that lays narrated scenes over dashcam accident footage.
Pick the footage start second for each scene so the picture matches what is being said:
- scene 1 (opening): the calm stretch just before the accident
- scene 2 (dashcam driver): the dashcam car driving normally
- scene 3 (at-fault analysis): the moment of the accident and right after
- scene 4 (vote and verdict): the accident again, or a still moment
- scene 5 (closing): the aftermath
Write a one-line on-screen caption for each scene.
Respond with ONLY a JSON object.`

// LLMPlacer asks a chat model for scene placement
type LLMPlacer struct {
	LLM   llm.Completer
	Title string
}

// NewLLMPlacer creates a Placer backed by the chat model
func NewLLMPlacer(c llm.Completer, title string) *LLMPlacer {
	return &LLMPlacer{LLM: c, Title: title}
}

func (p *LLMPlacer) Place(ctx context.Context, req PlacementRequest) (string, error) {
	raw, err := p.LLM.Complete(ctx, placementSystemPrompt, buildPlacementPrompt(req, p.Title))
	if err != nil {
		return "", fmt.Errorf("placement: %w", err)
	}
	return raw, nil
}

func buildPlacementPrompt(req PlacementRequest, title string) string {
	scenes, _ := json.MarshalIndent(req.Scenes, "", "  ")
	var sb strings.Builder
	sb.WriteString("SOURCE FOOTAGE:\n")
	sb.WriteString(fmt.Sprintf("- file: %s\n", req.VideoPath))
	sb.WriteString(fmt.Sprintf("- duration: %.2f seconds\n", req.Footage.Duration))
	sb.WriteString(fmt.Sprintf("- fps: %.2f\n", req.Footage.FrameRate))
	sb.WriteString(fmt.Sprintf("- resolution: %dx%d\n\n", req.Footage.Width, req.Footage.Height))
	sb.WriteString("SCENES (narration and measured speech length):\n")
	sb.Write(scenes)
	sb.WriteString("\n\nOUTPUT SHAPE:\n")
	sb.WriteString(fmt.Sprintf(`{"title": %q, "final_liability_ratio": {"dashcam": 0, "other": 100}, "summary_narration": "...",
 "scenes": [{"scene_id": 1, "description": "...", "source_video_timestamp": {"start_sec": 0.0},
   "text_overlay": {"text": "...", "position": "bottom_center", "font_size": 35, "color": "white", "stroke_color": "black", "stroke_width": 2},
   "visual_padding_sec": 0.5}],
 "outro": {"duration": 3.0, "background_color": [0, 0, 0], "text": "Drive safe!"}}`, title))
	sb.WriteString(fmt.Sprintf("\n\nEvery start_sec must be below %.2f and leave room for the scene's speech.", req.Footage.Duration))
	return sb.String()
}
