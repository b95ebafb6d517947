package cli

import (
	"github.com/spf13/cobra"

	"rubswatch/internal/app"
)

var (
	allocateTenants  string
	allocateTotal    string
	allocateStrategy string
	allocatePeriod   string
	allocateProperty string
	allocateSave     bool
	allocateJSON     bool
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Split a utility bill across tenants by floor area and occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AllocateOptions{
			TenantsPath: allocateTenants,
			Total:       allocateTotal,
			Strategy:    allocateStrategy,
			Period:      allocatePeriod,
			PropertyID:  allocateProperty,
			Save:        allocateSave,
			JSON:        allocateJSON,
		}
		return getApp().Allocate(cmd.Context(), opts)
	},
}

func init() {
	allocateCmd.Flags().StringVar(&allocateTenants, "tenants", "", "Tenant profiles file (CSV or JSON)")
	allocateCmd.Flags().StringVar(&allocateTotal, "total", "", "Bill total in major currency units, e.g. 1234.56")
	allocateCmd.Flags().StringVar(&allocateStrategy, "strategy", "", "Rounding reconciliation: cyclic or largest_remainder (defaults to config)")
	allocateCmd.Flags().StringVar(&allocatePeriod, "period", "", "Billing period (YYYY-MM)")
	allocateCmd.Flags().StringVar(&allocateProperty, "property", "", "Property ID recorded with the run")
	allocateCmd.Flags().BoolVar(&allocateSave, "save", false, "Persist the allocation run")
	allocateCmd.Flags().BoolVar(&allocateJSON, "json", false, "Print the run as JSON")
	_ = allocateCmd.MarkFlagRequired("tenants")
	_ = allocateCmd.MarkFlagRequired("total")
}
