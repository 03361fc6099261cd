package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"crash-review-pipeline/types"
)

// Prober reads container metadata with ffprobe
type Prober struct {
	Bin string
}

// NewProber creates a Prober for the given ffprobe binary
func NewProber(bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{Bin: bin}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

// Duration returns the media length in seconds
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, path)
	if err != nil {
		return 0, err
	}
	meta, err := ParseProbe(out)
	if err != nil {
		return 0, err
	}
	if meta.Duration <= 0 {
		return 0, fmt.Errorf("ffprobe %s: no duration", path)
	}
	return meta.Duration, nil
}

// Probe never fails; problems land in FootageMeta.Error with Duration 0.
func (p *Prober) Probe(ctx context.Context, path string) types.FootageMeta {
	if _, err := os.Stat(path); err != nil {
		return types.FootageMeta{Path: path, Error: fmt.Sprintf("footage not found: %s", path)}
	}
	out, err := p.run(ctx, path)
	if err != nil {
		return types.FootageMeta{Path: path, Error: err.Error()}
	}
	meta, err := ParseProbe(out)
	if err != nil {
		return types.FootageMeta{Path: path, Error: err.Error()}
	}
	meta.Path = path
	if meta.Duration <= 0 {
		meta.Error = "footage has no duration"
	}
	return meta
}

func (p *Prober) run(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.Bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return out, nil
}

// ParseProbe decodes ffprobe -print_format json output
func ParseProbe(data []byte) (types.FootageMeta, error) {
	var res probeOutput
	if err := json.Unmarshal(data, &res); err != nil {
		return types.FootageMeta{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	var meta types.FootageMeta
	if d, err := strconv.ParseFloat(strings.TrimSpace(res.Format.Duration), 64); err == nil {
		meta.Duration = d
	}
	for _, s := range res.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		meta.FrameRate = ParseFrameRate(s.RFrameRate)
		if meta.FrameRate == 0 {
			meta.FrameRate = ParseFrameRate(s.AvgFrameRate)
		}
		if meta.Duration == 0 {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				meta.Duration = d
			}
		}
		break
	}
	return meta, nil
}

// ParseFrameRate understands "30000/1001" and "25"
func ParseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
