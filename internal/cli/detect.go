package cli

import (
	"github.com/spf13/cobra"

	"rubswatch/internal/app"
)

var (
	detectUsage    string
	detectNotify   bool
	detectSave     bool
	detectProgress bool
	detectJSON     bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect usage anomalies in a usage file",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.DetectOptions{
			UsagePath: detectUsage,
			Notify:    detectNotify,
			Save:      detectSave,
			Progress:  detectProgress,
			JSON:      detectJSON,
		}
		return getApp().Detect(cmd.Context(), opts)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectUsage, "usage", "", "Usage readings file (CSV or JSON)")
	detectCmd.Flags().BoolVar(&detectNotify, "notify", false, "Send alerts for detected anomalies")
	detectCmd.Flags().BoolVar(&detectSave, "save", false, "Persist detections")
	detectCmd.Flags().BoolVar(&detectProgress, "progress", false, "Show a progress bar on stderr")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Print results as JSON")
	_ = detectCmd.MarkFlagRequired("usage")
}
