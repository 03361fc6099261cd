package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"crash-review-pipeline/01_events"
	"crash-review-pipeline/types"
)

const (
	DefaultLeadSec       = 1.0
	DefaultToleranceSec  = 0.5
	DefaultMaxIterations = 3
	DefaultCallTimeout   = 90 * time.Second
)

// CueInstruction travels with every revision request.
const CueInstruction = "Keep every fact, party and timestamp unchanged. Rewrite only the " +
	"length of the first scene's narration and end it on an emphatic exclamation " +
	"that lands exactly at the target second."

type Direction string

const (
	Shorten  Direction = "shorten"
	Lengthen Direction = "lengthen"
)

type State string

const (
	StateConverged State = "converged"
	StateExhausted State = "exhausted"
	StateSkipped   State = "skipped"
)

// Generator produces a script from the incident data, or revises one when
// Request.Revision is set.
type Generator interface {
	Generate(ctx context.Context, req Request) (*types.Script, error)
}

// Request is one generator call: a first draft, or a revision when Revision is set
type Request struct {
	Events   []types.Event
	Report   string
	Revision *Revision
}

// Revision asks the generator to rewrite Script so its first scene fits TargetSec.
type Revision struct {
	Script      *types.Script
	Direction   Direction
	DeltaSec    float64
	CurrentSec  float64
	TargetSec   float64
	Instruction string
}

// Result is the outcome of Converge
type Result struct {
	Script     *types.Script
	State      State
	Attempts   int
	EventSec   float64
	TargetSec  float64
	InitialSec float64
	FinalSec   float64
}

// Report converts the result for the run state
func (r *Result) Report() *types.ConvergenceReport {
	return &types.ConvergenceReport{
		State:         string(r.State),
		TargetSec:     r.TargetSec,
		InitialSec:    r.InitialSec,
		FinalSec:      r.FinalSec,
		Attempts:      r.Attempts,
		CriticalEvent: r.EventSec,
	}
}

// Controller revises the first scene until its spoken cue lands LeadSec
// before the critical event.
type Controller struct {
	Gen           Generator
	Estimator     Estimator
	Vocabulary    []string
	LeadSec       float64
	Tolerance     float64
	MaxIterations int
	CallTimeout   time.Duration
	Logger        *zap.Logger
}

// NewController creates a Controller with the default lead, tolerance and budget
func NewController(gen Generator, est Estimator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		Gen:           gen,
		Estimator:     est,
		LeadSec:       DefaultLeadSec,
		Tolerance:     DefaultToleranceSec,
		MaxIterations: DefaultMaxIterations,
		CallTimeout:   DefaultCallTimeout,
		Logger:        logger,
	}
}

// Converge fits script to the critical event found in req.Events. It only
// fails when ctx is cancelled; every other problem ends in StateExhausted
// with the last valid script.
func (c *Controller) Converge(ctx context.Context, initial *types.Script, req Request) (*Result, error) {
	if initial == nil || len(initial.Scenes) == 0 {
		return nil, errors.New("converge: empty script")
	}
	log := c.logger().With(zap.String("stage", "convergence"))

	work := c.stamp(initial.Clone())
	res := &Result{Script: work, InitialSec: work.Scenes[0].EstimatedDuration}
	res.FinalSec = res.InitialSec

	eventSec, ok := events.Locate(req.Events, c.Vocabulary)
	if !ok {
		log.Info("no critical event, keeping script as generated")
		res.State = StateSkipped
		return c.finish(res), nil
	}
	res.EventSec = eventSec
	res.TargetSec = eventSec - c.LeadSec
	// no narration can estimate below FloorSec, so such targets are unreachable
	if res.TargetSec <= c.Estimator.FloorSec-c.Tolerance {
		log.Info("target out of reach below estimator floor, skipping",
			zap.Float64("event", eventSec), zap.Float64("target", res.TargetSec))
		res.State = StateSkipped
		return c.finish(res), nil
	}

	current := res.InitialSec
	if c.within(current, res.TargetSec) {
		res.State = StateConverged
		log.Info("already within tolerance", zap.Float64("current", current), zap.Float64("target", res.TargetSec))
		return c.finish(res), nil
	}

	for attempt := 1; attempt <= c.MaxIterations; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("converge: %w", err)
		}
		dir := Shorten
		if current < res.TargetSec {
			dir = Lengthen
		}
		rev := &Revision{
			Script:      work.Clone(),
			Direction:   dir,
			DeltaSec:    math.Abs(current - res.TargetSec),
			CurrentSec:  current,
			TargetSec:   res.TargetSec,
			Instruction: CueInstruction,
		}
		next, err := c.call(ctx, Request{Events: req.Events, Report: req.Report, Revision: rev})
		res.Attempts = attempt
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("converge: %w", ctx.Err())
			}
			log.Warn("revision rejected, keeping last valid script",
				zap.Int("attempt", attempt), zap.String("direction", string(dir)), zap.Error(err))
			res.State = StateExhausted
			return c.finish(res), nil
		}
		if verr := validRevision(work, next); verr != nil {
			log.Warn("revision rejected, keeping last valid script",
				zap.Int("attempt", attempt), zap.String("direction", string(dir)), zap.Error(verr))
			res.State = StateExhausted
			return c.finish(res), nil
		}

		work = c.stamp(next.Clone())
		res.Script = work
		before := current
		current = work.Scenes[0].EstimatedDuration
		res.FinalSec = current
		log.Info("revision applied",
			zap.Int("attempt", attempt),
			zap.String("direction", string(dir)),
			zap.Float64("before", before),
			zap.Float64("after", current),
			zap.Float64("target", res.TargetSec),
		)
		if c.within(current, res.TargetSec) {
			res.State = StateConverged
			return c.finish(res), nil
		}
	}
	res.State = StateExhausted
	log.Info("iteration budget spent", zap.Int("attempts", res.Attempts), zap.Float64("final", current))
	return c.finish(res), nil
}

func (c *Controller) call(ctx context.Context, req Request) (*types.Script, error) {
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}
	return c.Gen.Generate(ctx, req)
}

func (c *Controller) within(current, target float64) bool {
	return math.Abs(current-target) <= c.Tolerance
}

// stamp fills the estimate of every scene and renumbers ids
func (c *Controller) stamp(s *types.Script) *types.Script {
	for i := range s.Scenes {
		s.Scenes[i].SceneID = i + 1
		s.Scenes[i].EstimatedDuration = c.Estimator.Estimate(s.Scenes[i].Narration)
	}
	return s
}

func (c *Controller) finish(res *Result) *Result {
	res.Script.JoinNarration()
	return res
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

var (
	errNoScenes     = errors.New("revision has no scenes")
	errSceneCount   = errors.New("revision changed the scene count")
	errEmptyOpening = errors.New("revision has an empty first narration")
)

func validRevision(prev, next *types.Script) error {
	switch {
	case next == nil || len(next.Scenes) == 0:
		return errNoScenes
	case len(next.Scenes) != len(prev.Scenes):
		return fmt.Errorf("%w: %d -> %d", errSceneCount, len(prev.Scenes), len(next.Scenes))
	case strings.TrimSpace(next.Scenes[0].Narration) == "":
		return errEmptyOpening
	}
	return nil
}
