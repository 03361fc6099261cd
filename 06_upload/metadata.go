package upload

import (
	"fmt"
	"strings"

	"crash-review-pipeline/config"
	"crash-review-pipeline/types"
)

// Metadata is everything the video host needs besides the file itself
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}

var baseTags = []string{"블랙박스", "교통사고", "과실비율", "dashcam", "accident review"}

// BuildMetadata derives upload metadata from the rendered timeline. The title
// is cut on rune boundaries so Hangul never splits mid-character.
func BuildMetadata(tl *types.Timeline, cfg config.UploadConfig) *Metadata {
	title := strings.TrimSpace(tl.Title)
	if title == "" {
		title = "Accident Review"
	}
	title = truncate(title, cfg.TitleMaxChars)

	var sb strings.Builder
	r := tl.FinalLiabilityRatio
	if r.Dashcam+r.Other > 0 {
		fmt.Fprintf(&sb, "과실비율 블랙박스 %d : 상대 %d\n\n", r.Dashcam, r.Other)
	}
	narration := strings.TrimSpace(tl.SummaryNarration)
	if narration == "" {
		parts := make([]string, 0, len(tl.Scenes))
		for _, sc := range tl.Scenes {
			if n := strings.TrimSpace(sc.Narration); n != "" {
				parts = append(parts, n)
			}
		}
		narration = strings.Join(parts, " ")
	}
	sb.WriteString(narration)

	visibility := cfg.Visibility
	if visibility == "" {
		visibility = "unlisted"
	}
	tags := append([]string(nil), baseTags...)
	if r.Dashcam+r.Other > 0 {
		tags = append(tags, fmt.Sprintf("%d대%d", r.Dashcam, r.Other))
	}

	return &Metadata{
		Title:       title,
		Description: strings.TrimSpace(sb.String()),
		Tags:        tags,
		CategoryID:  cfg.CategoryID,
		Visibility:  visibility,
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 3 {
		return string(rs[:n])
	}
	return string(rs[:n-3]) + "..."
}
