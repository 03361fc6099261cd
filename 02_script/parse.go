package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crash-review-pipeline/llm"
	"crash-review-pipeline/types"
)

var ErrUnparsable = errors.New("unparsable script response")

// scriptJSON is the raw JSON the model returns
type scriptJSON struct {
	Title        string      `json:"title"`
	SceneScripts []sceneJSON `json:"scene_scripts"`
	Scenes       []sceneJSON `json:"scenes"`
}

type sceneJSON struct {
	Scene             int    `json:"scene"`
	SceneID           int    `json:"scene_id"`
	Narration         string `json:"narration"`
	Visual            string `json:"visual"`
	VisualDescription string `json:"visual_description"`
}

// ParseScript turns a model reply into a Script. Fenced blocks and leading
// prose are tolerated; anything without at least one narrated scene is
// ErrUnparsable.
func ParseScript(raw string) (*types.Script, error) {
	content := llm.CleanJSON(raw)
	var parsed scriptJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		fixed := llm.ExtractFirstJSONObject(content)
		if fixed == "" {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		if err := json.Unmarshal([]byte(fixed), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
	}
	scenes := parsed.SceneScripts
	if len(scenes) == 0 {
		scenes = parsed.Scenes
	}
	out := &types.Script{Title: strings.TrimSpace(parsed.Title)}
	for _, s := range scenes {
		narr := strings.TrimSpace(strings.ReplaceAll(s.Narration, "~", ""))
		if narr == "" {
			continue
		}
		visual := s.VisualDescription
		if visual == "" {
			visual = s.Visual
		}
		out.Scenes = append(out.Scenes, types.Scene{
			SceneID:           len(out.Scenes) + 1,
			Narration:         narr,
			VisualDescription: strings.TrimSpace(visual),
		})
	}
	if len(out.Scenes) == 0 {
		return nil, fmt.Errorf("%w: no narrated scenes", ErrUnparsable)
	}
	out.JoinNarration()
	return out, nil
}
