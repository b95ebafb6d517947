package cli

import (
	"github.com/spf13/cobra"
)

var importUsage string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import usage readings into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), importUsage)
	},
}

func init() {
	importCmd.Flags().StringVar(&importUsage, "usage", "", "Usage readings file (CSV or JSON)")
	_ = importCmd.MarkFlagRequired("usage")
}
