package render

import (
	"fmt"
	"strings"
)

const (
	sampleRate = 44100
	margin     = 40
)

// sceneArgs builds one ffmpeg call rendering a scene clip with its
// narration (or silence) and optional caption.
func (c *Composer) sceneArgs(src, audio string, sp ScenePlan, ap AudioPlan, captionFile string, ov *overlayStyle, out string) []string {
	args := []string{"-y",
		"-ss", secs(sp.Start),
		"-t", secs(sp.Extract),
		"-i", src,
	}
	if ap.Silent {
		args = append(args, "-f", "lavfi", "-t", secs(sp.Required),
			"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", sampleRate))
	} else {
		args = append(args, "-i", audio)
	}

	video := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		c.Width, c.Height, c.Width, c.Height, c.FPS,
	)
	if sp.Freeze > 0 {
		video += fmt.Sprintf(",tpad=stop_mode=clone:stop_duration=%s", secs(sp.Freeze))
	}
	video += fmt.Sprintf(",trim=duration=%s,setpts=PTS-STARTPTS", secs(sp.Required))
	if captionFile != "" && ov != nil {
		video += "," + c.drawtext(captionFile, ov)
	}
	video += "[v]"

	audioChain := fmt.Sprintf("[1:a]aresample=%d,aformat=channel_layouts=stereo", sampleRate)
	if !ap.Silent && ap.Pad > 0 {
		audioChain += fmt.Sprintf(",apad=whole_dur=%s", secs(ap.Duration))
	}
	audioChain += fmt.Sprintf(",atrim=duration=%s,asetpts=PTS-STARTPTS[a]", secs(ap.Duration))

	args = append(args,
		"-filter_complex", video+";"+audioChain,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(c.FPS),
		"-c:a", "aac", "-ar", fmt.Sprint(sampleRate), "-ac", "2",
		"-t", secs(sp.Required),
		out,
	)
	return args
}

// outroArgs renders a solid card with centered text and a silent track
func (c *Composer) outroArgs(color [3]int, duration float64, captionFile, out string) []string {
	bg := fmt.Sprintf("0x%02X%02X%02X", clampByte(color[0]), clampByte(color[1]), clampByte(color[2]))
	vf := "null"
	if captionFile != "" {
		vf = c.drawtext(captionFile, &overlayStyle{
			Position:    "center",
			FontSize:    c.OutroFontSize,
			Color:       "white",
			StrokeColor: "black",
			StrokeWidth: 2,
		})
	}
	return []string{"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s", bg, c.Width, c.Height, c.FPS, secs(duration)),
		"-f", "lavfi", "-t", secs(duration), "-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", sampleRate),
		"-vf", vf,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(c.FPS),
		"-c:a", "aac", "-ar", fmt.Sprint(sampleRate), "-ac", "2",
		"-t", secs(duration),
		out,
	}
}

func concatArgs(listFile, out string) []string {
	return []string{"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		out,
	}
}

type overlayStyle struct {
	Position    string
	FontSize    int
	Color       string
	StrokeColor string
	StrokeWidth float64
}

// drawtext reads the caption from a file so any script renders without escaping
func (c *Composer) drawtext(captionFile string, ov *overlayStyle) string {
	x, y := anchor(ov.Position)
	parts := []string{
		"drawtext=textfile='" + escapeFilterValue(captionFile) + "'",
	}
	if c.Font != "" {
		if strings.ContainsAny(c.Font, `/\`) || strings.HasSuffix(c.Font, ".ttf") || strings.HasSuffix(c.Font, ".otf") {
			parts = append(parts, "fontfile='"+escapeFilterValue(c.Font)+"'")
		} else {
			parts = append(parts, "font='"+escapeFilterValue(c.Font)+"'")
		}
	}
	size := ov.FontSize
	if size <= 0 {
		size = 35
	}
	parts = append(parts,
		fmt.Sprintf("fontsize=%d", size),
		"fontcolor="+orDefault(ov.Color, "white"),
		fmt.Sprintf("borderw=%g", ov.StrokeWidth),
		"bordercolor="+orDefault(ov.StrokeColor, "black"),
		"x="+x,
		"y="+y,
	)
	return strings.Join(parts, ":")
}

// anchor maps a caption position to drawtext x/y; unknown means bottom_center
func anchor(pos string) (string, string) {
	left := fmt.Sprint(margin)
	center := "(w-text_w)/2"
	right := fmt.Sprintf("w-text_w-%d", margin)
	top := fmt.Sprint(margin)
	middle := "(h-text_h)/2"
	bottom := fmt.Sprintf("h-text_h-%d", margin+20)
	switch pos {
	case "center":
		return center, middle
	case "top_left":
		return left, top
	case "top_center":
		return center, top
	case "top_right":
		return right, top
	case "bottom_left":
		return left, bottom
	case "bottom_right":
		return right, bottom
	default:
		return center, bottom
	}
}

func escapeFilterValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, ":", `\:`)
	return s
}

func concatLine(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func secs(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func clampByte(v int) int {
	return min(255, max(0, v))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
