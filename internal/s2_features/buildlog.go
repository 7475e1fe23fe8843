package s2_features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database"
)

// BuildLogRepository implements contracts.BuildLog on feature_store_builds
type BuildLogRepository struct {
	q database.Querier
}

// NewBuildLogRepository creates a new build log
func NewBuildLogRepository(q database.Querier) *BuildLogRepository {
	return &BuildLogRepository{q: q}
}

// SaveBuild appends the report (감사 로그, 덮어쓰지 않음)
func (r *BuildLogRepository) SaveBuild(ctx context.Context, report *contracts.BuildReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal build report: %w", err)
	}

	var validationJSON []byte
	if !report.Validation.IsEmpty() {
		if validationJSON, err = json.Marshal(report.Validation); err != nil {
			return fmt.Errorf("marshal validation report: %w", err)
		}
	}

	var failureKind *string
	if report.Failure != nil {
		k := string(report.Failure.Kind)
		failureKind = &k
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO feature_store_builds (run_id, tenant_id, start_date, end_date, stage, failure_kind, validation, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
	`, report.RunID, report.TenantID, report.StartDate, report.EndDate, string(report.Stage),
		failureKind, nullableJSON(validationJSON), string(reportJSON))
	if err != nil {
		return fmt.Errorf("insert feature_store_builds: %w", err)
	}
	return nil
}

// LatestValidation returns the newest non-empty validation report, nil when none
func (r *BuildLogRepository) LatestValidation(ctx context.Context, tenantID int64) (*contracts.ValidationReport, error) {
	var raw []byte
	err := r.q.QueryRow(ctx, `
		SELECT validation
		FROM feature_store_builds
		WHERE tenant_id = $1 AND validation IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest validation: %w", err)
	}

	var report contracts.ValidationReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode validation report: %w", err)
	}
	return &report, nil
}

func nullableJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
