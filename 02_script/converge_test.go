package script

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"crash-review-pipeline/types"
)

// scriptedGen replays responses in order and records every request.
type scriptedGen struct {
	mu        sync.Mutex
	responses []*types.Script
	errs      []error
	requests  []Request
}

func (g *scriptedGen) Generate(ctx context.Context, req Request) (*types.Script, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.requests)
	g.requests = append(g.requests, req)
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return g.responses[len(g.responses)-1], nil
}

// syllables builds a first narration that estimates to n/5 seconds.
func syllables(n int) string { return strings.Repeat("가", n) }

func scriptWith(first string, rest ...string) *types.Script {
	s := &types.Script{Scenes: []types.Scene{{Narration: first}}}
	for _, r := range rest {
		s.Scenes = append(s.Scenes, types.Scene{Narration: r})
	}
	return s
}

var scenarioEvents = []types.Event{
	{Start: "00:00", End: "00:02", Description: "depart"},
	{Start: "00:05", End: "00:06", Description: "collision"},
}

func newTestController(gen Generator) (*Controller, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := NewController(gen, DefaultEstimator(), zap.New(core))
	return c, logs
}

func TestConvergeShortensToTarget(t *testing.T) {
	gen := &scriptedGen{responses: []*types.Script{
		scriptWith(syllables(25), "둘", "셋", "넷"), // 5.0s
		scriptWith(syllables(20), "둘", "셋", "넷"), // 4.0s
	}}
	c, logs := newTestController(gen)

	res, err := c.Converge(context.Background(), scriptWith(syllables(30), "둘", "셋", "넷"), Request{Events: scenarioEvents})
	if err != nil {
		t.Fatalf("Converge: %v", err)
	}
	if res.TargetSec != 4.0 {
		t.Errorf("target = %v, want 4.0", res.TargetSec)
	}
	if res.InitialSec != 6.0 {
		t.Errorf("initial = %v, want 6.0", res.InitialSec)
	}
	if res.State != StateConverged {
		t.Fatalf("state = %s, want converged", res.State)
	}
	if res.FinalSec < 3.5 || res.FinalSec > 4.5 {
		t.Errorf("final = %v, want within [3.5, 4.5]", res.FinalSec)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if gen.requests[0].Revision.Direction != Shorten {
		t.Errorf("first direction = %s, want shorten", gen.requests[0].Revision.Direction)
	}
	if got := gen.requests[0].Revision.DeltaSec; got != 2.0 {
		t.Errorf("first delta = %v, want 2.0", got)
	}
	if gen.requests[0].Revision.Instruction == "" || gen.requests[0].Revision.Script == nil {
		t.Error("revision request missing instruction or script")
	}
	want := syllables(20) + " 둘 셋 넷"
	if res.Script.FullNarration != want {
		t.Errorf("full narration = %q, want %q", res.Script.FullNarration, want)
	}

	applied := logs.FilterMessage("revision applied").All()
	if len(applied) != 2 {
		t.Fatalf("logged %d revisions, want 2", len(applied))
	}
	fields := applied[0].ContextMap()
	if fields["stage"] != "convergence" || fields["direction"] != "shorten" || fields["before"] != 6.0 || fields["after"] != 5.0 {
		t.Errorf("unexpected attempt fields: %v", fields)
	}
}

func TestConvergeExhaustsAfterBudget(t *testing.T) {
	gen := &scriptedGen{responses: []*types.Script{scriptWith(syllables(29), "둘", "셋", "넷")}}
	c, _ := newTestController(gen)

	res, err := c.Converge(context.Background(), scriptWith(syllables(30), "둘", "셋", "넷"), Request{Events: scenarioEvents})
	if err != nil {
		t.Fatalf("Converge: %v", err)
	}
	if res.State != StateExhausted || res.Attempts != 3 {
		t.Fatalf("state = %s after %d attempts, want exhausted after 3", res.State, res.Attempts)
	}
	if len(gen.requests) != 3 {
		t.Errorf("generator called %d times, want 3", len(gen.requests))
	}
	if len(res.Script.Scenes) != 4 || res.Script.FullNarration == "" {
		t.Errorf("malformed script after exhaustion: %+v", res.Script)
	}
}

func TestConvergeAlreadyWithinTolerance(t *testing.T) {
	gen := &scriptedGen{}
	c, _ := newTestController(gen)
	res, err := c.Converge(context.Background(), scriptWith(syllables(21), "둘"), Request{Events: scenarioEvents})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateConverged || res.Attempts != 0 || len(gen.requests) != 0 {
		t.Errorf("state=%s attempts=%d calls=%d", res.State, res.Attempts, len(gen.requests))
	}
}

func TestConvergeLengthens(t *testing.T) {
	gen := &scriptedGen{responses: []*types.Script{scriptWith(syllables(20), "둘")}}
	c, _ := newTestController(gen)
	res, err := c.Converge(context.Background(), scriptWith(syllables(5), "둘"), Request{Events: scenarioEvents})
	if err != nil {
		t.Fatal(err)
	}
	if gen.requests[0].Revision.Direction != Lengthen {
		t.Errorf("direction = %s, want lengthen", gen.requests[0].Revision.Direction)
	}
	if res.State != StateConverged {
		t.Errorf("state = %s", res.State)
	}
}

func TestConvergeInvalidRevisionKeepsLastScript(t *testing.T) {
	tests := []struct {
		name string
		gen  *scriptedGen
	}{
		{"generator error", &scriptedGen{errs: []error{errors.New("boom")}}},
		{"no scenes", &scriptedGen{responses: []*types.Script{{}}}},
		{"scene count changed", &scriptedGen{responses: []*types.Script{scriptWith(syllables(20))}}},
		{"empty first narration", &scriptedGen{responses: []*types.Script{scriptWith("  ", "둘")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(tt.gen)
			initial := scriptWith(syllables(30), "둘")
			res, err := c.Converge(context.Background(), initial, Request{Events: scenarioEvents})
			if err != nil {
				t.Fatalf("Converge: %v", err)
			}
			if res.State != StateExhausted || res.Attempts != 1 {
				t.Errorf("state = %s attempts = %d, want exhausted after 1", res.State, res.Attempts)
			}
			if res.Script.Scenes[0].Narration != syllables(30) {
				t.Error("last valid script was not kept")
			}
			if res.Script.FullNarration != syllables(30)+" 둘" {
				t.Errorf("full narration = %q", res.Script.FullNarration)
			}
		})
	}
}

func TestConvergeSkipsWithoutCriticalEvent(t *testing.T) {
	gen := &scriptedGen{}
	c, _ := newTestController(gen)
	initial := scriptWith(syllables(30), "둘")
	res, err := c.Converge(context.Background(), initial, Request{Events: []types.Event{{Start: "00:01", Description: "depart"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateSkipped || len(gen.requests) != 0 {
		t.Errorf("state = %s calls = %d", res.State, len(gen.requests))
	}
	if res.Script.Scenes[0].Narration != initial.Scenes[0].Narration {
		t.Error("skipped script was modified")
	}
	if initial.FullNarration != "" {
		t.Error("input script was mutated")
	}
}

func TestConvergeSkipsTargetBelowFloor(t *testing.T) {
	c, _ := newTestController(&scriptedGen{})
	evts := []types.Event{{Start: "00:01", Description: "collision"}}
	res, err := c.Converge(context.Background(), scriptWith(syllables(30)), Request{Events: evts})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateSkipped {
		t.Errorf("state = %s, want skipped", res.State)
	}
}

func TestConvergeReachableTargetNearFloor(t *testing.T) {
	gen := &scriptedGen{}
	c, _ := newTestController(gen)
	evts := []types.Event{{Start: "00:01.8", Description: "collision"}}
	res, err := c.Converge(context.Background(), scriptWith(syllables(5)), Request{Events: evts})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateConverged || res.Attempts != 0 {
		t.Errorf("state = %s after %d attempts, want converged after 0", res.State, res.Attempts)
	}
	if len(gen.requests) != 0 {
		t.Errorf("generator called %d times", len(gen.requests))
	}
}

func TestConvergeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestController(&scriptedGen{responses: []*types.Script{scriptWith(syllables(29))}})
	if _, err := c.Converge(ctx, scriptWith(syllables(30)), Request{Events: scenarioEvents}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestConvergeRejectsEmptyScript(t *testing.T) {
	c, _ := newTestController(&scriptedGen{})
	if _, err := c.Converge(context.Background(), &types.Script{}, Request{}); err == nil {
		t.Fatal("expected error for empty script")
	}
}
