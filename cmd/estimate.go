package cmd

import (
	"fmt"
	"strings"

	"crash-review-pipeline/02_script"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <text>",
	Short: "Print the estimated spoken duration of a narration",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		est := script.Estimator{
			UnitsPerSecond: cfg.Estimator.UnitsPerSecond,
			EmphasisFactor: cfg.Estimator.EmphasisFactor,
			CommaFactor:    cfg.Estimator.CommaFactor,
			FloorSec:       cfg.Estimator.FloorSec,
		}
		fmt.Fprintf(cmd.OutOrStdout(), "units: %d\nestimate: %.2fs\n", script.Units(text), est.Estimate(text))
		return nil
	},
}
