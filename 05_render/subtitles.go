package render

import (
	"fmt"
	"math"
	"os"
	"strings"

	"crash-review-pipeline/types"
)

// Cue is one subtitle line on the final video's clock
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Cues lays the rendered scenes back to back, each one Required(sc) long.
// A cue covers the speech only; padding stays uncaptioned. kept[i] false
// means scene i never made it into the video.
func Cues(scenes []types.Scene, kept []bool) []Cue {
	var cues []Cue
	var clock float64
	for i, sc := range scenes {
		if i < len(kept) && !kept[i] {
			continue
		}
		req := Required(sc)
		speech := sc.ActualDuration
		if speech <= 0 {
			speech = sc.EstimatedDuration
		}
		if speech <= 0 || speech > req {
			speech = req
		}
		if text := strings.TrimSpace(sc.Narration); text != "" {
			cues = append(cues, Cue{Index: len(cues) + 1, Start: clock, End: clock + speech, Text: text})
		}
		clock += req
	}
	return cues
}

// FormatSRT renders cues as an .srt document
func FormatSRT(cues []Cue) string {
	var sb strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", c.Index, SRTTimestamp(c.Start), SRTTimestamp(c.End), c.Text)
	}
	return sb.String()
}

// SRTTimestamp formats seconds as HH:MM:SS,mmm
func SRTTimestamp(sec float64) string {
	ms := int64(math.Round(math.Max(0, sec) * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// subtitlePath swaps the artifact's extension for .srt
func subtitlePath(video string) string {
	if i := strings.LastIndex(video, "."); i > strings.LastIndex(video, string(os.PathSeparator)) {
		return video[:i] + ".srt"
	}
	return video + ".srt"
}

func (c *Composer) writeSubtitles(video string, scenes []types.Scene, clips []string) (string, error) {
	kept := make([]bool, len(clips))
	for i, clip := range clips {
		kept[i] = clip != ""
	}
	cues := Cues(scenes, kept)
	if len(cues) == 0 {
		return "", nil
	}
	path := subtitlePath(video)
	if err := os.WriteFile(path, []byte(FormatSRT(cues)), 0o644); err != nil {
		return "", fmt.Errorf("write subtitles: %w", err)
	}
	return path, nil
}
