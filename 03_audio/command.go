package audio

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"crash-review-pipeline/media"
)

var ErrNoEngine = errors.New("no TTS engine found: set TTS_COMMAND or install edge-tts")

// CommandTTS shells out to a local TTS binary. "edge-tts" gets its own
// flags, a .py path runs under python3, anything else receives
// --text and --output.
type CommandTTS struct {
	Command  string
	Voice    string
	Runner   media.Runner
	Attempts int
	Backoff  time.Duration
	Logger   *zap.Logger
}

// NewCommandTTS picks command, or edge-tts when it is on PATH
func NewCommandTTS(command, voice string, logger *zap.Logger) (*CommandTTS, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		if _, err := exec.LookPath("edge-tts"); err != nil {
			return nil, ErrNoEngine
		}
		command = "edge-tts"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandTTS{
		Command:  command,
		Voice:    voice,
		Runner:   media.ExecRunner{},
		Attempts: 3,
		Backoff:  2 * time.Second,
		Logger:   logger,
	}, nil
}

func (c *CommandTTS) Synthesize(ctx context.Context, text, outPath string) error {
	name, args := c.command(text, outPath)
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.Runner.Run(ctx, name, args...); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger().Warn("tts attempt failed", zap.String("stage", "audio"), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.Backoff):
			}
		}
	}
	return err
}

func (c *CommandTTS) command(text, outPath string) (string, []string) {
	switch {
	case c.Command == "edge-tts":
		voice := c.Voice
		if voice == "" || !strings.HasSuffix(voice, "Neural") {
			voice = "ko-KR-InJoonNeural"
		}
		return "edge-tts", []string{"--voice", voice, "--text", text, "--write-media", outPath}
	case strings.HasSuffix(c.Command, ".py"):
		return "python3", []string{c.Command, "--text", text, "--output", outPath}
	default:
		return c.Command, []string{"--text", text, "--output", outPath}
	}
}

func (c *CommandTTS) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
