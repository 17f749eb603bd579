package cli

import (
	"github.com/spf13/cobra"

	"price-trend-engine/internal/app"
)

var backfillDryRun bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Bootstrap timelines for catalog products with no recorded history",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{
			DryRun: backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Report what would be created without writing")
}
