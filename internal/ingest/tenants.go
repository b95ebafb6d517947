package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"rubswatch/internal/allocation"
)

type tenantJSON struct {
	ID            string           `json:"id"`
	SquareFootage *decimal.Decimal `json:"square_footage"`
	Occupants     *int64           `json:"occupants"`
}

// LoadTenants reads tenant profiles from a CSV or JSON file.
func LoadTenants(path string) ([]allocation.TenantProfile, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tenants, err := ReadTenants(file, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load tenants from %s: %w", path, err)
	}
	return tenants, nil
}

// ReadTenants decodes tenant profiles. Rows with a missing or negative area or occupant count, or a
// repeated id, are rejected.
func ReadTenants(r io.Reader, format Format) ([]allocation.TenantProfile, error) {
	var tenants []allocation.TenantProfile
	var err error
	switch format {
	case FormatJSON:
		tenants, err = readTenantsJSON(r)
	default:
		tenants, err = readTenantsCSV(r)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return tenants, nil
}

func readTenantsCSV(r io.Reader) ([]allocation.TenantProfile, error) {
	rows, lines, err := csvRows(r, "id", "square_footage", "occupants")
	if err != nil {
		return nil, err
	}

	tenants := make([]allocation.TenantProfile, 0, len(rows))
	for i, row := range rows {
		tenant, err := parseTenant(row["id"], row["square_footage"], row["occupants"])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lines[i], err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

func parseTenant(id, sqft, occupants string) (allocation.TenantProfile, error) {
	if id == "" {
		return allocation.TenantProfile{}, fmt.Errorf("id is required")
	}
	if sqft == "" {
		return allocation.TenantProfile{}, fmt.Errorf("tenant %s: square_footage is required", id)
	}
	area, err := decimal.NewFromString(sqft)
	if err != nil {
		return allocation.TenantProfile{}, fmt.Errorf("tenant %s: invalid square_footage %q: %w", id, sqft, err)
	}
	if occupants == "" {
		return allocation.TenantProfile{}, fmt.Errorf("tenant %s: occupants is required", id)
	}
	count, err := strconv.ParseInt(occupants, 10, 64)
	if err != nil {
		return allocation.TenantProfile{}, fmt.Errorf("tenant %s: invalid occupants %q: %w", id, occupants, err)
	}
	return validateTenant(allocation.TenantProfile{ID: id, SquareFootage: area, Occupants: count})
}

func readTenantsJSON(r io.Reader) ([]allocation.TenantProfile, error) {
	var raw []tenantJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tenants: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	tenants := make([]allocation.TenantProfile, 0, len(raw))
	for i, item := range raw {
		if item.ID == "" {
			return nil, fmt.Errorf("tenant %d: id is required", i)
		}
		if item.SquareFootage == nil {
			return nil, fmt.Errorf("tenant %s: square_footage is required", item.ID)
		}
		if item.Occupants == nil {
			return nil, fmt.Errorf("tenant %s: occupants is required", item.ID)
		}
		tenant, err := validateTenant(allocation.TenantProfile{
			ID:            item.ID,
			SquareFootage: *item.SquareFootage,
			Occupants:     *item.Occupants,
		})
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

func validateTenant(t allocation.TenantProfile) (allocation.TenantProfile, error) {
	if t.SquareFootage.IsNegative() {
		return t, fmt.Errorf("tenant %s: square_footage cannot be negative", t.ID)
	}
	if t.Occupants < 0 {
		return t, fmt.Errorf("tenant %s: occupants cannot be negative", t.ID)
	}
	return t, nil
}
