package allocation

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func tenant(id string, sqft int64, occupants int64) TenantProfile {
	return TenantProfile{ID: id, SquareFootage: decimal.NewFromInt(sqft), Occupants: occupants}
}

func charges(results []Result) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.ChargeAmount
	}
	return out
}

func assertCharges(t *testing.T, results []Result, want ...int64) {
	t.Helper()
	got := charges(results)
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("charges = %v, want %v", got, want)
		}
	}
}

func TestAllocateIdenticalProfilesSplitEvenly(t *testing.T) {
	results := Allocate(10000, []TenantProfile{
		tenant("a", 1000, 2),
		tenant("b", 1000, 2),
	}, DefaultWeights())

	assertCharges(t, results, 5000, 5000)
	if results[0].TenantID != "a" || results[1].TenantID != "b" {
		t.Fatalf("results should keep tenant order: %+v", results)
	}
}

func TestAllocateWeightedByOccupancy(t *testing.T) {
	results := Allocate(100000, []TenantProfile{
		tenant("a", 1000, 1),
		tenant("b", 1000, 3),
	}, DefaultWeights())

	assertCharges(t, results, 40000, 60000)

	a := results[0]
	if !a.SquareFootageCost.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("sqft cost = %s, want 30000", a.SquareFootageCost)
	}
	if !a.OccupancyCost.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("occupancy cost = %s, want 10000", a.OccupancyCost)
	}
	if !a.Breakdown.SquareFootage.Equal(a.SquareFootageCost) || !a.Breakdown.Occupancy.Equal(a.OccupancyCost) {
		t.Errorf("breakdown should echo cost components: %+v", a.Breakdown)
	}
	if !a.OccupancyRatio.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("occupancy ratio = %s, want 0.25", a.OccupancyRatio)
	}
}

func TestAllocateNonPositiveTotal(t *testing.T) {
	tenants := []TenantProfile{tenant("a", 900, 1), tenant("b", 1200, 4), tenant("c", 500, 2)}
	for _, total := range []int64{0, -500} {
		t.Run(fmt.Sprintf("total=%d", total), func(t *testing.T) {
			results := Allocate(total, tenants, DefaultWeights())
			if len(results) != len(tenants) {
				t.Fatalf("expected %d results, got %d", len(tenants), len(results))
			}
			for _, r := range results {
				if r.ChargeAmount != 0 || !r.SquareFootageRatio.IsZero() || !r.OccupancyRatio.IsZero() ||
					!r.SquareFootageCost.IsZero() || !r.OccupancyCost.IsZero() {
					t.Fatalf("expected all-zero result, got %+v", r)
				}
			}
		})
	}
}

func TestAllocateEmptyTenants(t *testing.T) {
	results := Allocate(10000, nil, DefaultWeights())
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil result set, got %#v", results)
	}
}

func TestAllocateReconcilesRounding(t *testing.T) {
	cases := []struct {
		name    string
		total   int64
		tenants []TenantProfile
		want    []int64
	}{
		{
			name:    "three tenants short by one",
			total:   100,
			tenants: []TenantProfile{tenant("a", 1, 1), tenant("b", 1, 1), tenant("c", 1, 1)},
			want:    []int64{34, 33, 33},
		},
		{
			name:    "three tenants over by one",
			total:   200,
			tenants: []TenantProfile{tenant("a", 1, 1), tenant("b", 1, 1), tenant("c", 1, 1)},
			want:    []int64{66, 67, 67},
		},
		{
			name:  "six tenants over by two",
			total: 100,
			tenants: []TenantProfile{
				tenant("a", 1, 1), tenant("b", 1, 1), tenant("c", 1, 1),
				tenant("d", 1, 1), tenant("e", 1, 1), tenant("f", 1, 1),
			},
			want: []int64{16, 16, 17, 17, 17, 17},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := Allocate(tc.total, tc.tenants, DefaultWeights())
			assertCharges(t, results, tc.want...)
			if got := Total(results); got != tc.total {
				t.Fatalf("sum = %d, want %d", got, tc.total)
			}
		})
	}
}

func TestAllocateExactSumAcrossInputs(t *testing.T) {
	tenants := []TenantProfile{
		{ID: "a", SquareFootage: decimal.RequireFromString("812.5"), Occupants: 1},
		{ID: "b", SquareFootage: decimal.RequireFromString("1033.25"), Occupants: 3},
		{ID: "c", SquareFootage: decimal.RequireFromString("677"), Occupants: 2},
		{ID: "d", SquareFootage: decimal.RequireFromString("1499.9"), Occupants: 5},
		{ID: "e", SquareFootage: decimal.RequireFromString("401"), Occupants: 0},
	}
	strategies := map[string]Reconciler{StrategyCyclic: Cyclic{}, StrategyLargestRemainder: LargestRemainder{}}

	for name, reconciler := range strategies {
		engine := New(Options{Weights: DefaultWeights(), Reconciler: reconciler})
		for total := int64(1); total <= 5000; total += 37 {
			if got := Total(engine.Allocate(total, tenants)); got != total {
				t.Fatalf("%s: total %d allocated as %d", name, total, got)
			}
		}
	}
}

func TestAllocateRatioNormalization(t *testing.T) {
	tenants := []TenantProfile{tenant("a", 700, 1), tenant("b", 950, 2), tenant("c", 1100, 4)}
	results := Allocate(123457, tenants, DefaultWeights())

	sqft, occ := decimal.Zero, decimal.Zero
	for _, r := range results {
		sqft = sqft.Add(r.SquareFootageRatio)
		occ = occ.Add(r.OccupancyRatio)
	}
	tolerance := decimal.New(1, -12)
	if sqft.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		t.Errorf("sqft ratios sum to %s", sqft)
	}
	if occ.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		t.Errorf("occupancy ratios sum to %s", occ)
	}
}

func TestAllocateZeroTotals(t *testing.T) {
	tenants := []TenantProfile{tenant("a", 0, 2), tenant("b", 0, 3)}
	results := Allocate(10001, tenants, DefaultWeights())

	for _, r := range results {
		if !r.SquareFootageRatio.IsZero() {
			t.Fatalf("sqft ratio should be zero when total area is zero, got %s", r.SquareFootageRatio)
		}
	}
	if got := Total(results); got != 10001 {
		t.Fatalf("sum = %d, want 10001", got)
	}

	results = Allocate(500, []TenantProfile{tenant("a", 100, 0), tenant("b", 300, 0)}, DefaultWeights())
	for _, r := range results {
		if !r.OccupancyRatio.IsZero() {
			t.Fatalf("occupancy ratio should be zero when no occupants, got %s", r.OccupancyRatio)
		}
	}
	if got := Total(results); got != 500 {
		t.Fatalf("sum = %d, want 500", got)
	}
}

func TestAllocateMonotonicInSquareFootage(t *testing.T) {
	base := []TenantProfile{tenant("a", 1000, 2), tenant("b", 800, 1), tenant("c", 1200, 3)}
	grown := append([]TenantProfile(nil), base...)
	grown[0] = tenant("a", 1500, 2)

	before := Allocate(250000, base, DefaultWeights())[0]
	after := Allocate(250000, grown, DefaultWeights())[0]

	if !after.SquareFootageRatio.GreaterThan(before.SquareFootageRatio) {
		t.Fatalf("ratio should increase: before %s after %s", before.SquareFootageRatio, after.SquareFootageRatio)
	}
	if after.ChargeAmount <= before.ChargeAmount {
		t.Fatalf("charge should increase: before %d after %d", before.ChargeAmount, after.ChargeAmount)
	}
}

func TestAllocateEqualProfilesWithinOneUnit(t *testing.T) {
	tenants := []TenantProfile{tenant("a", 900, 2), tenant("b", 650, 1), tenant("c", 900, 2)}
	for total := int64(1); total < 3000; total += 7 {
		results := Allocate(total, tenants, DefaultWeights())
		diff := results[0].ChargeAmount - results[2].ChargeAmount
		if diff < -1 || diff > 1 {
			t.Fatalf("total %d: identical tenants differ by %d", total, diff)
		}
	}
}

func TestAllocateDeterministicAndPure(t *testing.T) {
	tenants := []TenantProfile{tenant("a", 733, 1), tenant("b", 1021, 2), tenant("c", 455, 3)}
	snapshot := append([]TenantProfile(nil), tenants...)

	first := Allocate(98765, tenants, DefaultWeights())
	second := Allocate(98765, tenants, DefaultWeights())

	for i := range first {
		if first[i].ChargeAmount != second[i].ChargeAmount ||
			first[i].SquareFootageRatio.String() != second[i].SquareFootageRatio.String() ||
			first[i].OccupancyCost.String() != second[i].OccupancyCost.String() {
			t.Fatalf("results differ between runs: %+v vs %+v", first[i], second[i])
		}
	}
	for i := range tenants {
		if tenants[i].ID != snapshot[i].ID || !tenants[i].SquareFootage.Equal(snapshot[i].SquareFootage) {
			t.Fatalf("input tenants were mutated")
		}
	}
}

func TestEngineDefaults(t *testing.T) {
	engine := New(Options{})
	results := engine.Allocate(100000, []TenantProfile{tenant("a", 1000, 1), tenant("b", 1000, 3)})
	assertCharges(t, results, 40000, 60000)
}
