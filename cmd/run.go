package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crash-review-pipeline/01_events"
	"crash-review-pipeline/pipeline"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline once",
	Long:  "Generate, fit, narrate, place and render one review video from an event list, a report and the dashcam clip.",
	RunE:  runPipelineCommand,
}

var (
	eventsFile string
	reportFile string
	videoFile  string
)

func init() {
	runCmd.Flags().StringVarP(&eventsFile, "events", "e", "", "Event list JSON (required)")
	runCmd.Flags().StringVarP(&reportFile, "report", "r", "", "Accident report text file")
	runCmd.Flags().StringVarP(&videoFile, "video", "v", "", "Dashcam clip (required)")
	runCmd.MarkFlagRequired("events")
	runCmd.MarkFlagRequired("video")
}

func runPipelineCommand(cmd *cobra.Command, args []string) error {
	evts, err := events.Load(eventsFile)
	if err != nil {
		return err
	}
	var report string
	if reportFile != "" {
		data, err := os.ReadFile(reportFile)
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}
		report = string(data)
	}
	if _, err := os.Stat(videoFile); err != nil {
		return fmt.Errorf("video file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	st, err := w.pipeline.Run(ctx, pipeline.Input{Events: evts, Report: report, VideoPath: videoFile})
	if err != nil {
		if st != nil {
			fmt.Fprintf(os.Stderr, "Run %s failed\n", st.RunID)
		}
		return err
	}
	fmt.Printf("Run ID: %s\n", st.RunID)
	if st.Convergence != nil {
		fmt.Printf("Opening cue: %s after %d revision(s), %.2fs (target %.2fs)\n",
			st.Convergence.State, st.Convergence.Attempts, st.Convergence.FinalSec, st.Convergence.TargetSec)
	}
	fmt.Printf("Video: %s\n", st.VideoFile)
	if st.YouTubeURL != "" {
		fmt.Printf("YouTube: %s\n", st.YouTubeURL)
	}
	return nil
}
