package cmd

import (
	"fmt"

	"crash-review-pipeline/01_events"

	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the critical event offset and the cue target",
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := events.Load(eventsFile)
		if err != nil {
			return err
		}
		ev, off, ok := events.Match(evts, cfg.Script.CriticalEvents)
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintln(out, "no critical event found")
			return nil
		}
		fmt.Fprintf(out, "event: %s-%s %s\n", ev.Start, ev.End, ev.Description)
		fmt.Fprintf(out, "offset: %.2fs (%s)\n", off, events.FormatTimecode(off))
		fmt.Fprintf(out, "cue target: %.2fs\n", off-cfg.Convergence.LeadSec)
		return nil
	},
}

func init() {
	locateCmd.Flags().StringVarP(&eventsFile, "events", "e", "", "Event list JSON (required)")
	locateCmd.MarkFlagRequired("events")
}
