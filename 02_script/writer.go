package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"crash-review-pipeline/llm"
	"crash-review-pipeline/types"
)

const systemPrompt = `You are the scriptwriter and host voice of a Korean traffic-accident review channel run by a veteran accident lawyer.
Write in lively spoken Korean, one sentence of narration per scene.

Scenes follow this arc:
1. Opening: greet viewers and roll the footage with an exclamation.
2. Dashcam driver: side with the dashcam driver who was driving normally.
3. At-fault analysis: point out exactly what the other party did wrong.
4. Vote and verdict: ask viewers to vote, then give a decisive ratio such as "100 대 0".
5. Closing (optional): comfort the victim and urge everyone to drive safely.

Rules:
- Never distort the facts, parties or times in the input.
- Never use the "~" character.
- Respond with ONLY a JSON object: {"title": "...", "scene_scripts": [{"scene": 1, "narration": "..."}]}`

// LLMWriter generates and revises scripts through a chat model
type LLMWriter struct {
	LLM       llm.Completer
	MinScenes int
	MaxScenes int
	Logger    *zap.Logger
}

// NewLLMWriter creates a new LLM-backed script writer
func NewLLMWriter(c llm.Completer, minScenes, maxScenes int, logger *zap.Logger) *LLMWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMWriter{LLM: c, MinScenes: minScenes, MaxScenes: maxScenes, Logger: logger}
}

func (w *LLMWriter) Generate(ctx context.Context, req Request) (*types.Script, error) {
	user := buildUserPrompt(req, w.MinScenes, w.MaxScenes)
	if req.Revision != nil {
		user = buildRevisionPrompt(req)
	}
	raw, err := w.LLM.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}
	s, err := ParseScript(raw)
	if err != nil {
		w.Logger.Warn("script reply rejected", zap.String("stage", "script"), zap.Int("raw_len", len(raw)), zap.Error(err))
		return nil, err
	}
	return s, nil
}

func buildUserPrompt(req Request, minScenes, maxScenes int) string {
	if minScenes <= 0 {
		minScenes = 4
	}
	if maxScenes < minScenes {
		maxScenes = minScenes
	}
	evts, _ := json.MarshalIndent(types.EventList{Events: req.Events}, "", "  ")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a %d-%d scene review script for this accident.\n\n", minScenes, maxScenes))
	sb.WriteString("EVENT TIMELINE:\n")
	sb.Write(evts)
	sb.WriteString("\n\nLEGAL REPORT:\n")
	sb.WriteString(strings.TrimSpace(req.Report))
	sb.WriteString("\n\nRespond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}

func buildRevisionPrompt(req Request) string {
	rev := req.Revision
	current, _ := json.MarshalIndent(rev.Script, "", "  ")
	verb := "Shorten"
	if rev.Direction == Lengthen {
		verb = "Lengthen"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s the narration of scene 1 by about %.1f seconds of speech.\n", verb, rev.DeltaSec))
	sb.WriteString(fmt.Sprintf("It currently takes %.1f seconds; it must take %.1f seconds so the cue lands on the moment of impact.\n", rev.CurrentSec, rev.TargetSec))
	sb.WriteString(rev.Instruction)
	sb.WriteString("\nKeep the same number of scenes and leave scenes 2 and later unchanged.\n\nCURRENT SCRIPT:\n")
	sb.Write(current)
	sb.WriteString("\n\nRespond ONLY with the full revised script as JSON in the same shape.")
	return sb.String()
}

// WithFallback tries primary and falls back to the deterministic script for
// first drafts. Revisions are never faked.
type WithFallback struct {
	Primary Generator
	Logger  *zap.Logger
}

func (g WithFallback) Generate(ctx context.Context, req Request) (*types.Script, error) {
	s, err := g.Primary.Generate(ctx, req)
	if err == nil || req.Revision != nil || ctx.Err() != nil {
		return s, err
	}
	if g.Logger != nil {
		g.Logger.Warn("script generation failed, using fallback script", zap.String("stage", "script"), zap.Error(err))
	}
	return FallbackScript(req.Events, req.Report), nil
}
