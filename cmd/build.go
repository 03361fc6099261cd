package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"crash-review-pipeline/02_script"
	"crash-review-pipeline/03_audio"
	"crash-review-pipeline/04_timeline"
	"crash-review-pipeline/05_render"
	"crash-review-pipeline/06_upload"
	"crash-review-pipeline/config"
	"crash-review-pipeline/llm"
	"crash-review-pipeline/media"
	"crash-review-pipeline/pipeline"
	"crash-review-pipeline/store"

	"go.uber.org/zap"
)

// wiring holds the assembled pipeline and whatever must be closed after it.
type wiring struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	closers  []func() error
}

func (w *wiring) Close() {
	for _, c := range w.closers {
		_ = c()
	}
}

// buildPipeline assembles every stage from cfg and the environment.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*wiring, error) {
	w := &wiring{}

	st, err := openStore(ctx, cfg.Store, cfg.Paths.Runs)
	if err != nil {
		return nil, err
	}
	w.store = st
	if rs, ok := st.(*store.RedisStore); ok {
		w.closers = append(w.closers, rs.Close)
	}

	var client *llm.Client
	if key := llm.APIKeyFromEnv(); key != "" {
		client, err = llm.New(llm.Config{
			APIKey:      key,
			BaseURL:     cfg.Script.BaseURL,
			Model:       cfg.Script.Model,
			Temperature: cfg.Script.Temperature,
			Timeout:     seconds(cfg.Script.TimeoutSec),
		})
		if err != nil {
			return nil, fmt.Errorf("llm client: %w", err)
		}
	}

	writer, err := newWriter(cfg.Script, client, logger)
	if err != nil {
		return nil, err
	}

	var controller *script.Controller
	if cfg.Convergence.Enabled {
		controller = script.NewController(writer, script.Estimator{
			UnitsPerSecond: cfg.Estimator.UnitsPerSecond,
			EmphasisFactor: cfg.Estimator.EmphasisFactor,
			CommaFactor:    cfg.Estimator.CommaFactor,
			FloorSec:       cfg.Estimator.FloorSec,
		}, logger)
		controller.Vocabulary = cfg.Script.CriticalEvents
		controller.LeadSec = cfg.Convergence.LeadSec
		controller.Tolerance = cfg.Convergence.ToleranceSec
		controller.MaxIterations = cfg.Convergence.MaxIterations
		if cfg.Script.TimeoutSec > 0 {
			controller.CallTimeout = seconds(cfg.Script.TimeoutSec)
		}
	}

	synth, err := newSpeech(ctx, cfg.Audio, logger)
	if err != nil {
		return nil, err
	}
	prober := media.NewProber(cfg.Render.FFprobeBin)
	narrator := audio.NewNarrator(synth, prober, logger)
	if cfg.Audio.TimeoutSec > 0 {
		narrator.CallTimeout = seconds(cfg.Audio.TimeoutSec)
	}

	var placer timeline.Placer
	if cfg.Timeline.PlacementEnabled && client != nil {
		pc, err := llm.New(llm.Config{
			APIKey:      llm.APIKeyFromEnv(),
			BaseURL:     cfg.Script.BaseURL,
			Model:       cfg.Timeline.Model,
			Temperature: 0.2,
			Timeout:     seconds(cfg.Timeline.TimeoutSec),
		})
		if err != nil {
			return nil, fmt.Errorf("placement client: %w", err)
		}
		placer = timeline.NewLLMPlacer(pc, cfg.Timeline.Title)
	}
	tsynth := timeline.NewSynthesizer(placer, timeline.Defaults{
		Title:         cfg.Timeline.Title,
		Padding:       cfg.Timeline.DefaultPadding,
		FontSize:      cfg.Render.FontSize,
		OutroDuration: cfg.Render.OutroDuration,
		OutroText:     cfg.Render.OutroText,
	}, logger)
	if cfg.Timeline.TimeoutSec > 0 {
		tsynth.CallTimeout = seconds(cfg.Timeline.TimeoutSec)
	}

	composer := render.NewComposer(media.ExecRunner{}, prober, cfg.Paths.Output, logger)
	composer.FFmpeg = cfg.Render.FFmpegBin
	composer.Workers = cfg.Render.Workers
	composer.Width = cfg.Render.Width
	composer.Height = cfg.Render.Height
	composer.FPS = cfg.Render.FPS
	composer.Font = cfg.Render.Font
	composer.OutroFontSize = cfg.Render.OutroFontSize
	composer.Prefix = cfg.Render.OutputPrefix
	composer.Container = cfg.Render.Container
	composer.Subtitles = cfg.Render.Subtitles

	deps := pipeline.Deps{
		Writer:     writer,
		Controller: controller,
		Narrator:   narrator,
		Prober:     prober,
		Timeline:   tsynth,
		Composer:   composer,
		Store:      st,
		Upload:     cfg.Upload,
		RunsDir:    cfg.Paths.Runs,
		LogsDir:    cfg.Paths.Logs,
		Logger:     logger,
	}
	if cfg.Upload.Enabled {
		deps.Publisher = upload.New(cfg.Upload, logger)
	}
	w.pipeline = pipeline.New(deps)
	return w, nil
}

func newWriter(sc config.ScriptConfig, client *llm.Client, logger *zap.Logger) (script.Generator, error) {
	if client == nil {
		if !sc.UseFallback {
			return nil, llm.ErrNoAPIKey
		}
		logger.Warn("no model API key, using the fallback script", zap.String("stage", "script"))
		return script.FallbackWriter{}, nil
	}
	writer := script.NewLLMWriter(client, sc.MinScenes, sc.MaxScenes, logger)
	if !sc.UseFallback {
		return writer, nil
	}
	return script.WithFallback{Primary: writer, Logger: logger}, nil
}

func newSpeech(ctx context.Context, ac config.AudioConfig, logger *zap.Logger) (audio.Synthesizer, error) {
	command := ac.Command
	if env := os.Getenv("TTS_COMMAND"); env != "" {
		command = env
	}
	if ac.Engine == "command" {
		return audio.NewCommandTTS(command, ac.Voice, logger)
	}
	g, err := audio.NewGoogleTTS(ctx, audio.GoogleConfig{
		LanguageCode:    ac.LanguageCode,
		Voice:           ac.Voice,
		SpeakingRate:    ac.SpeakingRate,
		CredentialsFile: ac.CredentialsFile,
	})
	if err == nil {
		return g, nil
	}
	logger.Warn("google tts unavailable, trying a local command", zap.String("stage", "audio"), zap.Error(err))
	c, cerr := audio.NewCommandTTS(command, "", logger)
	if cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	return c, nil
}

func openStore(ctx context.Context, sc config.StoreConfig, runsDir string) (store.Store, error) {
	if sc.Driver != "redis" {
		return store.NewFileStore(runsDir), nil
	}
	addr := sc.RedisAddr
	if env := os.Getenv("REDIS_ADDR"); env != "" {
		addr = env
	}
	ttl := time.Duration(sc.TTLHours) * time.Hour
	rs, err := store.NewRedisStore(ctx, addr, sc.KeyPrefix, ttl)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	return rs, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
