package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"rubswatch/internal/anomaly"
)

func TestReadTenantsCSV(t *testing.T) {
	input := "id,square_footage,occupants\nunit-1, 850.5, 2\nunit-2,1200,3\n"
	tenants, err := ReadTenants(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("read tenants: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(tenants))
	}
	if tenants[0].ID != "unit-1" || !tenants[0].SquareFootage.Equal(decimal.RequireFromString("850.5")) || tenants[0].Occupants != 2 {
		t.Fatalf("unexpected tenant %+v", tenants[0])
	}
}

func TestReadTenantsRejectsIncompleteRows(t *testing.T) {
	cases := map[string]string{
		"missing sqft":   "id,square_footage,occupants\nunit-1,,2\n",
		"bad occupants":  "id,square_footage,occupants\nunit-1,800,two\n",
		"negative area":  "id,square_footage,occupants\nunit-1,-5,1\n",
		"duplicate":      "id,square_footage,occupants\nunit-1,800,1\nunit-1,900,2\n",
		"missing column": "id,square_footage\nunit-1,800\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadTenants(strings.NewReader(input), FormatCSV); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}

	_, err := ReadTenants(strings.NewReader("id,square_footage,occupants\nunit-1,,2\n"), FormatCSV)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should carry the line number, got %v", err)
	}
}

func TestReadTenantsJSON(t *testing.T) {
	input := `[{"id":"a","square_footage":"1000","occupants":1},{"id":"b","square_footage":1000,"occupants":3}]`
	tenants, err := ReadTenants(strings.NewReader(input), FormatJSON)
	if err != nil {
		t.Fatalf("read tenants: %v", err)
	}
	if len(tenants) != 2 || tenants[1].Occupants != 3 {
		t.Fatalf("unexpected tenants %+v", tenants)
	}

	if _, err := ReadTenants(strings.NewReader(`[{"id":"a","occupants":1}]`), FormatJSON); err == nil {
		t.Fatal("missing square_footage should fail")
	}
	if _, err := ReadTenants(strings.NewReader(`[]`), FormatJSON); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestReadUsageGroupsAndSorts(t *testing.T) {
	input := strings.Join([]string{
		"property_id,property_name,utility_type,month,usage",
		"p-1,Maple Court,water,2025-02,5100",
		"p-2,Birch House,gas,2025-01,80",
		"p-1,Maple Court,water,2025-01,5000",
		"p-1,Maple Court,electric,2025-01,900",
	}, "\n")

	properties, err := ReadUsage(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("read usage: %v", err)
	}
	if len(properties) != 2 || properties[0].ID != "p-1" || properties[1].ID != "p-2" {
		t.Fatalf("unexpected grouping %+v", properties)
	}
	p1 := properties[0]
	if p1.Name != "Maple Court" || len(p1.Utilities) != 2 {
		t.Fatalf("unexpected property %+v", p1)
	}
	water := p1.Utilities[0]
	if water.Utility != anomaly.UtilityWater || water.Records[0].Month != "2025-01" || water.Records[1].Usage != 5100 {
		t.Fatalf("water history not sorted: %+v", water)
	}
	if p1.Utilities[1].Utility != anomaly.UtilityElectricity {
		t.Fatalf("electric alias not normalised: %+v", p1.Utilities[1])
	}
}

func TestReadUsageRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad month":     "property_id,utility_type,month,usage\np-1,water,January,10\n",
		"bad utility":   "property_id,utility_type,month,usage\np-1,steam,2025-01,10\n",
		"duplicate":     "property_id,utility_type,month,usage\np-1,water,2025-01,10\np-1,water,2025-01,12\n",
		"negative":      "property_id,utility_type,month,usage\np-1,water,2025-01,-1\n",
		"not a number":  "property_id,utility_type,month,usage\np-1,water,2025-01,lots\n",
		"empty":         "property_id,utility_type,month,usage\n",
		"no property":   "property_id,utility_type,month,usage\n,water,2025-01,10\n",
		"missing usage": "property_id,utility_type,month\np-1,water,2025-01\n",
		"infinite":      "property_id,utility_type,month,usage\np-1,water,2025-01,10\np-1,water,2025-02,Inf\n",
		"nan":           "property_id,utility_type,month,usage\np-1,water,2025-01,NaN\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadUsage(strings.NewReader(input), FormatCSV); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestReadUsageNonFiniteNamesRow(t *testing.T) {
	input := "property_id,utility_type,month,usage\np-1,water,2025-01,10\np-1,water,2025-02,+Inf\n"
	_, err := ReadUsage(strings.NewReader(input), FormatCSV)
	if err == nil || !strings.Contains(err.Error(), "row 2") || !strings.Contains(err.Error(), "finite") {
		t.Fatalf("expected row 2 finite-number error, got %v", err)
	}
}

func TestLoadUsageJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	body := `[{"property_id":"p-1","utility_type":"gas","month":"2025-03","usage":12.5}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	properties, err := LoadUsage(path)
	if err != nil {
		t.Fatalf("load usage: %v", err)
	}
	if properties[0].Utilities[0].Records[0].Usage != 12.5 {
		t.Fatalf("unexpected properties %+v", properties)
	}
	if FormatFromPath("x.CSV") != FormatCSV || FormatFromPath("x.Json") != FormatJSON {
		t.Fatal("format inference failed")
	}
}
