package s0_data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wonny/fleetcast/internal/contracts"
)

// ScopeRepository implements contracts.ScopeProvider on the appconfig selection tables
type ScopeRepository struct {
	db *sql.DB
}

// NewScopeRepository creates a new scope reader
func NewScopeRepository(db *sql.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

// ActiveScope resolves the tenant's active branches (with location) and categories
func (r *ScopeRepository) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	scope := &contracts.Scope{TenantID: tenantID}

	branchRows, err := r.db.QueryContext(ctx, `
		SELECT sb.branch_id,
		       COALESCE(m.branch_name, ''),
		       COALESCE(m.city_name, ''),
		       COALESCE(CAST(m.latitude AS FLOAT), 0),
		       COALESCE(CAST(m.longitude AS FLOAT), 0)
		FROM appconfig.selected_branches sb
		LEFT JOIN appconfig.branch_city_mapping m
		       ON m.tenant_id = sb.tenant_id AND m.branch_id = sb.branch_id AND m.is_active = 1
		WHERE sb.tenant_id = @tenant AND sb.is_active = 1
		ORDER BY sb.branch_id
	`, sql.Named("tenant", tenantID))
	if err != nil {
		return nil, fmt.Errorf("query selected branches: %w", err)
	}
	defer branchRows.Close()

	for branchRows.Next() {
		var b contracts.BranchLocation
		if err := branchRows.Scan(&b.BranchID, &b.Name, &b.City, &b.Latitude, &b.Longitude); err != nil {
			return nil, fmt.Errorf("scan selected branch: %w", err)
		}
		scope.Branches = append(scope.Branches, b)
	}
	if err := branchRows.Err(); err != nil {
		return nil, err
	}

	catRows, err := r.db.QueryContext(ctx, `
		SELECT category_id
		FROM appconfig.selected_categories
		WHERE tenant_id = @tenant AND is_active = 1
		ORDER BY category_id
	`, sql.Named("tenant", tenantID))
	if err != nil {
		return nil, fmt.Errorf("query selected categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var id int64
		if err := catRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selected category: %w", err)
		}
		scope.Categories = append(scope.Categories, id)
	}
	return scope, catRows.Err()
}

// ActiveTenants lists tenants with at least one active branch selection
func (r *ScopeRepository) ActiveTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT tenant_id
		FROM appconfig.selected_branches
		WHERE is_active = 1
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// StaticScope is a ScopeProvider over a fixed tenant list (PIPELINE_TENANTS override)
type StaticScope struct {
	Provider contracts.ScopeProvider
	Tenants  []int64
}

// ActiveScope delegates to the wrapped provider
func (s *StaticScope) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	return s.Provider.ActiveScope(ctx, tenantID)
}

// ActiveTenants returns the configured tenants, or the provider's when none are configured
func (s *StaticScope) ActiveTenants(ctx context.Context) ([]int64, error) {
	if len(s.Tenants) > 0 {
		return s.Tenants, nil
	}
	return s.Provider.ActiveTenants(ctx)
}
