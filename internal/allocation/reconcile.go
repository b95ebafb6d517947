package allocation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"rubswatch/internal/money"
)

const (
	// StrategyCyclic names the Cyclic reconciler.
	StrategyCyclic = "cyclic"
	// StrategyLargestRemainder names the LargestRemainder reconciler.
	StrategyLargestRemainder = "largest_remainder"
)

// Reconciler turns fractional per-tenant shares (minor units) into whole charges summing to total.
type Reconciler interface {
	Reconcile(total int64, shares []decimal.Decimal) []int64
}

// Cyclic rounds every share and then walks the tenant list from the start, adding or removing one
// unit per tenant until the sum matches. Leftover units always favour tenants earlier in the list.
type Cyclic struct{}

// Reconcile implements Reconciler.
func (Cyclic) Reconcile(total int64, shares []decimal.Decimal) []int64 {
	charges := make([]int64, len(shares))
	if len(shares) == 0 {
		return charges
	}

	var sum int64
	for i, share := range shares {
		charges[i] = money.RoundMinor(share)
		sum += charges[i]
	}

	difference := total - sum
	for i := 0; difference != 0; i = (i + 1) % len(charges) {
		if difference > 0 {
			charges[i]++
			difference--
		} else {
			charges[i]--
			difference++
		}
	}
	return charges
}

// LargestRemainder floors every share and hands the leftover units to the shares with the largest
// fractional remainders. Ties go to the earlier tenant.
type LargestRemainder struct{}

// Reconcile implements Reconciler.
func (LargestRemainder) Reconcile(total int64, shares []decimal.Decimal) []int64 {
	charges := make([]int64, len(shares))
	if len(shares) == 0 {
		return charges
	}

	remainders := make([]decimal.Decimal, len(shares))
	var sum int64
	for i, share := range shares {
		floor := share.Floor()
		charges[i] = floor.IntPart()
		remainders[i] = share.Sub(floor)
		sum += charges[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return remainders[b].Cmp(remainders[a])
	})

	difference := total - sum
	for k := 0; difference > 0; k = (k + 1) % len(order) {
		charges[order[k]]++
		difference--
	}
	for k := len(order) - 1; difference < 0; k = (k - 1 + len(order)) % len(order) {
		charges[order[k]]--
		difference++
	}
	return charges
}

// ReconcilerByName resolves a configured strategy name.
func ReconcilerByName(name string) (Reconciler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyCyclic:
		return Cyclic{}, nil
	case StrategyLargestRemainder:
		return LargestRemainder{}, nil
	default:
		return nil, fmt.Errorf("unknown reconciliation strategy %q", name)
	}
}

var (
	_ Reconciler = Cyclic{}
	_ Reconciler = LargestRemainder{}
)
