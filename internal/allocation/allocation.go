// Package allocation splits a shared utility cost across tenants using R.U.B.S. ratios of floor area
// and occupant count. Charges are integer minor units and always sum to the allocated total.
package allocation

import (
	"github.com/shopspring/decimal"
)

// TenantProfile describes one occupant unit for a single allocation run. Profiles with missing or
// invalid values must be filtered out before allocation.
type TenantProfile struct {
	ID            string          `json:"id"`
	SquareFootage decimal.Decimal `json:"square_footage"`
	Occupants     int64           `json:"occupants"`
}

// Weights split the total between the square-footage pool and the occupancy pool. They are expected
// to sum to one; the engine does not enforce it.
type Weights struct {
	SquareFootage decimal.Decimal
	Occupancy     decimal.Decimal
}

// DefaultWeights returns the 60/40 square-footage/occupancy split.
func DefaultWeights() Weights {
	return Weights{
		SquareFootage: decimal.RequireFromString("0.6"),
		Occupancy:     decimal.RequireFromString("0.4"),
	}
}

// Breakdown echoes the two cost components of a charge.
type Breakdown struct {
	SquareFootage decimal.Decimal `json:"square_footage"`
	Occupancy     decimal.Decimal `json:"occupancy"`
}

// Result is one tenant's share of an allocation run. Costs are minor units before rounding.
type Result struct {
	TenantID           string          `json:"tenant_id"`
	ChargeAmount       int64           `json:"charge_amount"`
	SquareFootageRatio decimal.Decimal `json:"square_footage_ratio"`
	OccupancyRatio     decimal.Decimal `json:"occupancy_ratio"`
	SquareFootageCost  decimal.Decimal `json:"square_footage_cost"`
	OccupancyCost      decimal.Decimal `json:"occupancy_cost"`
	Breakdown          Breakdown       `json:"breakdown"`
}

// Options configure an Engine.
type Options struct {
	Weights    Weights
	Reconciler Reconciler
}

// Engine allocates costs with fixed weights and a reconciliation strategy. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	weights    Weights
	reconciler Reconciler
}

// New constructs an Engine. Zero-valued options fall back to DefaultWeights and Cyclic.
func New(opts Options) *Engine {
	weights := opts.Weights
	if weights.SquareFootage.IsZero() && weights.Occupancy.IsZero() {
		weights = DefaultWeights()
	}
	reconciler := opts.Reconciler
	if reconciler == nil {
		reconciler = Cyclic{}
	}
	return &Engine{weights: weights, reconciler: reconciler}
}

// Allocate splits totalCost (minor units) across tenants with the given weights, reconciling
// rounding cyclically from the first tenant.
func Allocate(totalCost int64, tenants []TenantProfile, weights Weights) []Result {
	return New(Options{Weights: weights, Reconciler: Cyclic{}}).Allocate(totalCost, tenants)
}

// Allocate splits totalCost (minor units) across tenants. A non-positive total yields all-zero
// results, one per tenant.
func (e *Engine) Allocate(totalCost int64, tenants []TenantProfile) []Result {
	if len(tenants) == 0 {
		return []Result{}
	}

	results := make([]Result, len(tenants))
	if totalCost <= 0 {
		for i, t := range tenants {
			results[i] = zeroResult(t.ID)
		}
		return results
	}

	totalSqft := decimal.Zero
	var totalOccupants int64
	for _, t := range tenants {
		totalSqft = totalSqft.Add(t.SquareFootage)
		totalOccupants += t.Occupants
	}
	occupantsTotal := decimal.NewFromInt(totalOccupants)

	total := decimal.NewFromInt(totalCost)
	sqftPool := total.Mul(e.weights.SquareFootage)
	occupantPool := total.Mul(e.weights.Occupancy)

	shares := make([]decimal.Decimal, len(tenants))
	for i, t := range tenants {
		sqftRatio := ratio(t.SquareFootage, totalSqft)
		occupancyRatio := ratio(decimal.NewFromInt(t.Occupants), occupantsTotal)
		sqftCost := sqftPool.Mul(sqftRatio)
		occupancyCost := occupantPool.Mul(occupancyRatio)

		shares[i] = sqftCost.Add(occupancyCost)
		results[i] = Result{
			TenantID:           t.ID,
			SquareFootageRatio: sqftRatio,
			OccupancyRatio:     occupancyRatio,
			SquareFootageCost:  sqftCost,
			OccupancyCost:      occupancyCost,
			Breakdown: Breakdown{
				SquareFootage: sqftCost,
				Occupancy:     occupancyCost,
			},
		}
	}

	charges := e.reconciler.Reconcile(totalCost, shares)
	for i := range results {
		results[i].ChargeAmount = charges[i]
	}
	return results
}

// Total sums the charge amounts of an allocation run.
func Total(results []Result) int64 {
	var sum int64
	for _, r := range results {
		sum += r.ChargeAmount
	}
	return sum
}

func ratio(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total)
}

func zeroResult(id string) Result {
	return Result{
		TenantID:           id,
		SquareFootageRatio: decimal.Zero,
		OccupancyRatio:     decimal.Zero,
		SquareFootageCost:  decimal.Zero,
		OccupancyCost:      decimal.Zero,
		Breakdown: Breakdown{
			SquareFootage: decimal.Zero,
			Occupancy:     decimal.Zero,
		},
	}
}
