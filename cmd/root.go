package cmd

import (
	"fmt"
	"os"

	"crash-review-pipeline/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crashreview",
	Short: "Turn dashcam footage and an accident report into a narrated review video",
	Long: `crashreview localizes the moment of impact in an event list, fits the
opening narration so its cue lands just before it, synthesizes speech, places
every scene on the footage and renders the final video with ffmpeg.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is for local runs; CI injects secrets directly
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config.yaml")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(locateCmd)
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		lvl, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}
