package s0_data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
)

// RentalRepository implements contracts.RentalSource on the SQL Server rental system
// ⭐ SSOT: 원천 계약 집계 쿼리는 여기서만
type RentalRepository struct {
	db                *sql.DB
	completedStatusID int
	timeout           time.Duration
	log               zerolog.Logger
}

// NewRentalRepository creates a new rental source reader
func NewRentalRepository(db *sql.DB, completedStatusID int, timeout time.Duration, log zerolog.Logger) *RentalRepository {
	return &RentalRepository{
		db:                db,
		completedStatusID: completedStatusID,
		timeout:           timeout,
		log:               log.With().Str("component", "s0.rental").Logger(),
	}
}

// DailyDemand counts completed contracts per (start date, branch, category) within scope
func (r *RentalRepository) DailyDemand(ctx context.Context, scope *contracts.Scope, from, to time.Time) ([]contracts.DemandAggregate, error) {
	if scope.IsEmpty() {
		return nil, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	branchIn, args := inList("b", scope.BranchIDs())
	catIn, catArgs := inList("c", scope.Categories)
	args = append(args, catArgs...)
	args = append(args,
		sql.Named("tenant", scope.TenantID),
		sql.Named("status", r.completedStatusID),
		sql.Named("from", from.Format(contracts.DateLayout)),
		sql.Named("to", to.Format(contracts.DateLayout)),
	)

	query := fmt.Sprintf(`
		SELECT
			CAST(c.[Start] AS DATE) AS demand_date,
			c.BranchId,
			cm.CategoryId,
			COUNT(*) AS rentals_count,
			AVG(CAST(c.DailyRateAmount AS DECIMAL(12, 2))) AS avg_daily_rate
		FROM Rental.Contract c
		JOIN Fleet.Vehicles v ON c.VehicleId = v.Id
		JOIN Fleet.CarModels cm ON v.ModelId = cm.Id
		WHERE c.TenantId = @tenant
		  AND c.Discriminator = 'Contract'
		  AND c.StatusId = @status
		  AND CAST(c.[Start] AS DATE) BETWEEN @from AND @to
		  AND c.BranchId IN (%s)
		  AND cm.CategoryId IN (%s)
		GROUP BY CAST(c.[Start] AS DATE), c.BranchId, cm.CategoryId
		ORDER BY demand_date, c.BranchId, cm.CategoryId
	`, branchIn, catIn)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily demand: %w", err)
	}
	defer rows.Close()

	var out []contracts.DemandAggregate
	for rows.Next() {
		var agg contracts.DemandAggregate
		if err := rows.Scan(&agg.Date, &agg.BranchID, &agg.CategoryID, &agg.Rentals, &agg.AvgDailyRate); err != nil {
			return nil, fmt.Errorf("scan daily demand: %w", err)
		}
		agg.Date = contracts.DateOf(agg.Date)
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.log.Debug().
		Int64("tenant_id", scope.TenantID).
		Str("from", from.Format(contracts.DateLayout)).
		Str("to", to.Format(contracts.DateLayout)).
		Int("cells", len(out)).
		Msg("Aggregated source demand")
	return out, nil
}

// inList renders "@b0, @b1, ..." with matching named args
func inList(prefix string, ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "NULL", nil
	}
	names := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("%s%d", prefix, i)
		names[i] = "@" + name
		args[i] = sql.Named(name, id)
	}
	return strings.Join(names, ", "), args
}
