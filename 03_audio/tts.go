package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// Synthesizer turns one narration into an audio file at outPath
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

type GoogleConfig struct {
	LanguageCode    string
	Voice           string
	SpeakingRate    float64
	CredentialsFile string
}

// GoogleTTS calls Cloud Text-to-Speech and writes MP3 audio
type GoogleTTS struct {
	cfg GoogleConfig
	svc *texttospeech.Service
}

// NewGoogleTTS resolves credentials from CredentialsFile, then
// GOOGLE_APPLICATION_CREDENTIALS, then the default chain.
func NewGoogleTTS(ctx context.Context, cfg GoogleConfig) (*GoogleTTS, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		opt = option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	default:
		creds, err := google.FindDefaultCredentials(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("google credentials: %w", err)
		}
		opt = option.WithCredentials(creds)
	}
	return newGoogleTTS(ctx, cfg, opt)
}

func newGoogleTTS(ctx context.Context, cfg GoogleConfig, opts ...option.ClientOption) (*GoogleTTS, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tts service: %w", err)
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "ko-KR"
	}
	if cfg.SpeakingRate == 0 {
		cfg.SpeakingRate = 1.0
	}
	return &GoogleTTS{cfg: cfg, svc: svc}, nil
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text, outPath string) error {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.cfg.LanguageCode,
			Name:         g.cfg.Voice,
			SsmlGender:   "NEUTRAL",
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  g.cfg.SpeakingRate,
		},
	}
	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if resp.AudioContent == "" {
		return errors.New("synthesize: empty audio content")
	}
	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	return os.WriteFile(outPath, data, 0o644)
}
