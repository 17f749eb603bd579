package cli

import (
	"github.com/spf13/cobra"

	"price-trend-engine/internal/app"
)

var predictProduct string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Print the composed series and forecast for one product",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PredictOptions{
			ProductID: predictProduct,
		}

		return getApp().Predict(cmd.Context(), opts)
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictProduct, "product", "", "Product identifier")
}
