package forecast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database"
)

// RunTracker appends TrainingResults to forecast_training_runs
type RunTracker struct {
	q database.Querier
}

// NewRunTracker creates a new run log
func NewRunTracker(q database.Querier) *RunTracker {
	return &RunTracker{q: q}
}

// SaveTrainingResult 실패한 실행도 그대로 기록
func (t *RunTracker) SaveTrainingResult(ctx context.Context, result *contracts.TrainingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal training result: %w", err)
	}

	var champion, failureKind *string
	if result.Champion != "" {
		champion = &result.Champion
	}
	if result.Failure != nil {
		k := string(result.Failure.Kind)
		failureKind = &k
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO forecast_training_runs (run_id, tenant_id, run_date, config_hash, stage, champion, failure_kind, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, result.RunID, result.TenantID, result.RunDate, result.ConfigHash, string(result.Stage), champion, failureKind, string(payload))
	if err != nil {
		return fmt.Errorf("insert forecast_training_runs: %w", err)
	}
	return nil
}

// LatestResults returns the newest results of a tenant (forecast show)
func (t *RunTracker) LatestResults(ctx context.Context, tenantID int64, limit int) ([]contracts.TrainingResult, error) {
	rows, err := t.q.Query(ctx, `
		SELECT result
		FROM forecast_training_runs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, run_date DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query forecast_training_runs: %w", err)
	}
	defer rows.Close()

	var out []contracts.TrainingResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r contracts.TrainingResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode training result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ contracts.RunLog = (*RunTracker)(nil)
