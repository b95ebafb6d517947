package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func shares(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestCyclicFavoursEarlierTenants(t *testing.T) {
	got := Cyclic{}.Reconcile(100, shares("16.67", "16.67", "16.67", "16.67", "16.66", "16.66"))
	want := []int64{16, 16, 17, 17, 17, 17}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLargestRemainderFavoursLargestFractions(t *testing.T) {
	got := LargestRemainder{}.Reconcile(10, shares("3.2", "3.7", "3.1"))
	want := []int64{3, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = LargestRemainder{}.Reconcile(100, shares("16.6", "16.6", "16.6", "16.6", "16.8", "16.8"))
	want = []int64{17, 17, 16, 16, 17, 17}
	var sum int64
	for i := range want {
		sum += got[i]
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if sum != 100 {
		t.Fatalf("sum = %d", sum)
	}
}

func TestReconcilersHandleEmpty(t *testing.T) {
	if got := (Cyclic{}).Reconcile(10, nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if got := (LargestRemainder{}).Reconcile(10, nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestReconcilerByName(t *testing.T) {
	if r, err := ReconcilerByName(""); err != nil || r != (Cyclic{}) {
		t.Fatalf("empty name should resolve to cyclic: %v %v", r, err)
	}
	if r, err := ReconcilerByName("Largest_Remainder"); err != nil || r != (LargestRemainder{}) {
		t.Fatalf("largest_remainder should resolve: %v %v", r, err)
	}
	if _, err := ReconcilerByName("random"); err == nil {
		t.Fatal("unknown strategy should fail")
	}
}
