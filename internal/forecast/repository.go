package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database"
)

// Repository forecast 데이터 저장소 (demand_forecasts)
type Repository struct {
	q database.Querier
}

// NewRepository 새 저장소 생성
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// ReplaceRun deletes the previous rows of (tenant, run_date) and inserts records in one transaction
func (r *Repository) ReplaceRun(ctx context.Context, tenantID int64, runDate time.Time, records []contracts.ForecastRecord) error {
	query := `
		INSERT INTO demand_forecasts
			(tenant_id, run_date, horizon_day, branch_id, category_id, forecast_date,
			 forecast_demand, lower_bound, upper_bound, model_name, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	return pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM demand_forecasts WHERE tenant_id = $1 AND run_date = $2`, tenantID, runDate); err != nil {
			return fmt.Errorf("delete previous run: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, f := range records {
			batch.Queue(query,
				f.TenantID, f.RunDate, f.HorizonDay, f.BranchID, f.CategoryID, f.ForecastDate,
				f.ForecastDemand, f.LowerBound, f.UpperBound, f.ModelName, f.ModelVersion)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for _, f := range records {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("insert forecast branch %d category %d horizon %d: %w", f.BranchID, f.CategoryID, f.HorizonDay, err)
			}
		}
		return br.Close()
	})
}

// LoadRun returns (tenant, run_date) ordered by branch, category, horizon
func (r *Repository) LoadRun(ctx context.Context, tenantID int64, runDate time.Time) ([]contracts.ForecastRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT tenant_id, run_date, horizon_day, branch_id, category_id, forecast_date,
		       forecast_demand, lower_bound, upper_bound, model_name, model_version
		FROM demand_forecasts
		WHERE tenant_id = $1 AND run_date = $2
		ORDER BY branch_id, category_id, horizon_day
	`, tenantID, runDate)
	if err != nil {
		return nil, fmt.Errorf("query demand_forecasts: %w", err)
	}
	defer rows.Close()

	var out []contracts.ForecastRecord
	for rows.Next() {
		var f contracts.ForecastRecord
		if err := rows.Scan(
			&f.TenantID, &f.RunDate, &f.HorizonDay, &f.BranchID, &f.CategoryID, &f.ForecastDate,
			&f.ForecastDemand, &f.LowerBound, &f.UpperBound, &f.ModelName, &f.ModelVersion,
		); err != nil {
			return nil, fmt.Errorf("scan demand_forecasts: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestRunDate returns the most recent run_date, nil when none
func (r *Repository) LatestRunDate(ctx context.Context, tenantID int64) (*time.Time, error) {
	var d *time.Time
	err := r.q.QueryRow(ctx, `SELECT MAX(run_date) FROM demand_forecasts WHERE tenant_id = $1`, tenantID).Scan(&d)
	if err != nil {
		return nil, fmt.Errorf("query latest run date: %w", err)
	}
	return d, nil
}

var _ contracts.ForecastRepository = (*Repository)(nil)
