package cli

import (
	"github.com/spf13/cobra"

	"rubswatch/internal/anomaly"
	"rubswatch/internal/app"
)

var (
	exportProperty string
	exportUtility  string
	exportPNGPath  string
	exportCSVPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored usage series with its baseline as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		utility, err := anomaly.ParseUtilityType(exportUtility)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			PropertyID: exportProperty,
			Utility:    utility,
			PNGPath:    exportPNGPath,
			CSVPath:    exportCSVPath,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProperty, "property", "", "Property ID")
	exportCmd.Flags().StringVar(&exportUtility, "utility", "", "Utility type (water, electricity, gas, sewer)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	_ = exportCmd.MarkFlagRequired("property")
	_ = exportCmd.MarkFlagRequired("utility")
}
