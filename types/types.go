package types

import "strings"

// Event is one entry of the incident timeline produced by the upstream analysis
type Event struct {
	Start       string `json:"start"` // MM:SS
	End         string `json:"end"`   // MM:SS
	Description string `json:"description"`
}

// EventList is the wire shape of the analysis output: {"events": [...]}
type EventList struct {
	Events []Event `json:"events"`
}

// TextOverlay is the caption burned over a scene clip
type TextOverlay struct {
	Text        string  `json:"text"`
	Position    string  `json:"position"` // center | top_left | top_center | top_right | bottom_left | bottom_center | bottom_right
	FontSize    int     `json:"font_size"`
	Color       string  `json:"color"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Scene is one narrated, timed unit of the final video
type Scene struct {
	SceneID           int          `json:"scene_id"`
	Narration         string       `json:"narration"`
	VisualDescription string       `json:"visual_description,omitempty"`
	EstimatedDuration float64      `json:"estimated_duration"`
	ActualDuration    float64      `json:"actual_duration"`
	SourceOffset      float64      `json:"source_offset"`
	Padding           float64      `json:"padding"`
	AudioFile         string       `json:"audio_file,omitempty"`
	AudioError        string       `json:"audio_error,omitempty"`
	TextOverlay       *TextOverlay `json:"text_overlay,omitempty"`
}

// Duration returns the authoritative spoken length: the measured one once
// speech exists, the estimate otherwise.
func (s Scene) Duration() float64 {
	if s.ActualDuration > 0 {
		return s.ActualDuration
	}
	return s.EstimatedDuration
}

// Script is the ordered narration for one video
type Script struct {
	Title         string  `json:"title,omitempty"`
	Scenes        []Scene `json:"scene_scripts"`
	FullNarration string  `json:"full_narration"`
}

// Clone returns a deep copy so stages never share scene slices.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	out := *s
	out.Scenes = make([]Scene, len(s.Scenes))
	for i, sc := range s.Scenes {
		if sc.TextOverlay != nil {
			ov := *sc.TextOverlay
			sc.TextOverlay = &ov
		}
		out.Scenes[i] = sc
	}
	return &out
}

// JoinNarration recomputes FullNarration from the scenes in order
func (s *Script) JoinNarration() {
	parts := make([]string, 0, len(s.Scenes))
	for _, sc := range s.Scenes {
		if n := strings.TrimSpace(sc.Narration); n != "" {
			parts = append(parts, n)
		}
	}
	s.FullNarration = strings.Join(parts, " ")
}

// FootageMeta describes the source dashcam clip. Error is set instead of
// failing when probing did not work.
type FootageMeta struct {
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"`
	FrameRate float64 `json:"fps"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Error     string  `json:"error,omitempty"`
}

// LiabilityRatio splits fault between the dashcam vehicle and the other party
type LiabilityRatio struct {
	Dashcam int `json:"dashcam"`
	Other   int `json:"other"`
}

// Outro is the closing card appended after the last scene
type Outro struct {
	Duration   float64 `json:"duration"`
	Background [3]int  `json:"background_color"`
	Text       string  `json:"text"`
}

// Timeline is the validated schedule handed to the renderer
type Timeline struct {
	VideoSourcePath     string         `json:"video_source_file"`
	Title               string         `json:"title"`
	FinalLiabilityRatio LiabilityRatio `json:"final_liability_ratio"`
	SummaryNarration    string         `json:"summary_narration,omitempty"`
	Footage             FootageMeta    `json:"footage"`
	Scenes              []Scene        `json:"scenes"`
	Outro               Outro          `json:"outro"`
	Fallback            bool           `json:"fallback"`
}

// SceneAudio is one manifest row: the synthesized asset for a scene
type SceneAudio struct {
	SceneID   int     `json:"scene"`
	AudioPath string  `json:"audio_path"`
	Duration  float64 `json:"duration_sec"`
	Estimated float64 `json:"estimated_sec,omitempty"`
	Narration string  `json:"narration"`
	Visual    string  `json:"visual,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Manifest is the speech audit trail consumed by downstream viewers
type Manifest struct {
	SceneAudioFiles []SceneAudio `json:"scene_audio_files"`
	TotalDuration   float64      `json:"total_duration"`
	GeneratedAt     string       `json:"generated_at"`
	OriginalScript  *Script      `json:"original_script"`
	ManifestPath    string       `json:"manifest_path,omitempty"`
}

// ConvergenceReport summarises how the first-scene cue was fitted
type ConvergenceReport struct {
	State         string  `json:"state"`
	TargetSec     float64 `json:"target_sec"`
	InitialSec    float64 `json:"initial_sec"`
	FinalSec      float64 `json:"final_sec"`
	Attempts      int     `json:"attempts"`
	CriticalEvent float64 `json:"critical_event_sec,omitempty"`
}

// RunStatus is the lifecycle of one pipeline run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID       string             `json:"run_id"`
	Status      RunStatus          `json:"status"`
	Stage       string             `json:"stage"`
	StartedAt   string             `json:"started_at"`
	CompletedAt string             `json:"completed_at,omitempty"`
	VideoPath   string             `json:"video_path"`
	Events      []Event            `json:"events,omitempty"`
	Script      *Script            `json:"script,omitempty"`
	Convergence *ConvergenceReport `json:"convergence,omitempty"`
	Manifest    *Manifest          `json:"manifest,omitempty"`
	Timeline    *Timeline          `json:"timeline,omitempty"`
	VideoFile   string             `json:"video_file,omitempty"`
	YouTubeURL  string             `json:"youtube_url,omitempty"`
	YouTubeID   string             `json:"youtube_id,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// IsDone reports whether the run reached a terminal state.
func (s *PipelineState) IsDone() bool {
	return s.Status == RunCompleted || s.Status == RunFailed
}
