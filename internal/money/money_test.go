package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1000", 100000},
		{"12.345", 1235},
		{"12.344", 1234},
		{"-0.005", -1},
		{"0.004", 0},
	}
	for _, tc := range cases {
		got := ToMinor(decimal.RequireFromString(tc.in), DefaultExponent)
		if got != tc.want {
			t.Errorf("ToMinor(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFromMinor(t *testing.T) {
	got := FromMinor(123456, DefaultExponent)
	if !got.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("FromMinor = %s", got)
	}
	if s := FormatMinor(5, DefaultExponent); s != "0.05" {
		t.Fatalf("FormatMinor = %q", s)
	}
}

func TestRoundMinor(t *testing.T) {
	if got := RoundMinor(decimal.RequireFromString("2.5")); got != 3 {
		t.Fatalf("2.5 should round to 3, got %d", got)
	}
	if got := RoundMinor(decimal.RequireFromString("-2.5")); got != -3 {
		t.Fatalf("-2.5 should round to -3, got %d", got)
	}
}

func TestFormatMajor(t *testing.T) {
	if got := FormatMajor(decimal.RequireFromString("55")); got != "55.00" {
		t.Fatalf("FormatMajor(55) = %q", got)
	}
	if got := FormatMajor(decimal.RequireFromString("1234.5")); got != "1,234.50" {
		t.Fatalf("FormatMajor(1234.5) = %q", got)
	}
}
