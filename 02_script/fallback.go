package script

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"crash-review-pipeline/01_events"
	"crash-review-pipeline/types"
)

var ErrCannotRevise = errors.New("fallback writer cannot revise scripts")

// FallbackScript builds a four-scene script from the event list and the
// report alone, for runs without a reachable model.
func FallbackScript(evts []types.Event, report string) *types.Script {
	crash, _, found := events.Match(evts, nil)

	lead := "블랙박스 차량은 정상적으로 주행하고 있었습니다."
	for _, ev := range evts {
		if found && ev == crash {
			break
		}
		if d := strings.TrimSpace(ev.Description); d != "" {
			lead = d
		}
	}
	incident := "그 순간, 사고가 발생합니다!"
	if found {
		incident = strings.TrimSpace(crash.Description) + "!"
	}
	verdict := firstSentence(report)
	if verdict == "" {
		verdict = "과실 비율을 함께 살펴보겠습니다."
	}

	s := &types.Script{
		Title: "사고 영상 분석",
		Scenes: []types.Scene{
			{SceneID: 1, Narration: "자, 가보겠습니다. 오늘 함께 보실 영상입니다."},
			{SceneID: 2, Narration: lead},
			{SceneID: 3, Narration: incident},
			{SceneID: 4, Narration: verdict + " 항상 안전운전하십시오!"},
		},
	}
	s.JoinNarration()
	return s
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?。\n"); i >= 0 {
		_, size := utf8.DecodeRuneInString(text[i:])
		text = text[:i+size]
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > 120 {
		r := []rune(text)
		text = string(r[:120])
	}
	return text
}

// FallbackWriter is the Generator used when no model is configured.
type FallbackWriter struct{}

func (FallbackWriter) Generate(_ context.Context, req Request) (*types.Script, error) {
	if req.Revision != nil {
		return nil, ErrCannotRevise
	}
	return FallbackScript(req.Events, req.Report), nil
}
