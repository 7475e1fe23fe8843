// Package memstore keeps the fact, forecast and audit tables in memory.
// simulate 명령과 패키지 테스트에서 PostgreSQL 대신 사용.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// Store implements FeatureRepository, ForecastRepository, BuildLog and RunLog
type Store struct {
	mu sync.RWMutex

	features  map[int64]map[contracts.CellKey]contracts.DemandRecord
	forecasts map[int64]map[time.Time][]contracts.ForecastRecord
	builds    []contracts.BuildReport
	runs      []contracts.TrainingResult

	// failUpsertAfter >0 이면 해당 횟수 이후 UpsertBatch 실패 (롤백 테스트용)
	failUpsertAfter int
	upserts         int
}

// New creates an empty store
func New() *Store {
	return &Store{
		features:  make(map[int64]map[contracts.CellKey]contracts.DemandRecord),
		forecasts: make(map[int64]map[time.Time][]contracts.ForecastRecord),
	}
}

// ErrInjected is returned by UpsertBatch once FailUpsertsAfter is reached
var ErrInjected = errors.New("memstore: injected write failure")

// FailUpsertsAfter makes every UpsertBatch after the first n calls fail
func (s *Store) FailUpsertsAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpsertAfter = n
	s.upserts = 0
}

// === FeatureRepository ===

func (s *Store) LoadRange(ctx context.Context, tenantID int64, from, to time.Time) ([]contracts.DemandRecord, error) {
	from, to = contracts.DateOf(from), contracts.DateOf(to)
	return s.selectFeatures(ctx, tenantID, func(r *contracts.DemandRecord) bool {
		return !r.DemandDate.Before(from) && !r.DemandDate.After(to)
	})
}

func (s *Store) LoadSplit(ctx context.Context, tenantID int64, split contracts.SplitLabel) ([]contracts.DemandRecord, error) {
	return s.selectFeatures(ctx, tenantID, func(r *contracts.DemandRecord) bool {
		return r.Split == split
	})
}

func (s *Store) LoadAll(ctx context.Context, tenantID int64) ([]contracts.DemandRecord, error) {
	return s.selectFeatures(ctx, tenantID, func(*contracts.DemandRecord) bool { return true })
}

func (s *Store) selectFeatures(ctx context.Context, tenantID int64, keep func(*contracts.DemandRecord) bool) ([]contracts.DemandRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contracts.DemandRecord
	for _, r := range s.features[tenantID] {
		if keep(&r) {
			out = append(out, copyRecord(r))
		}
	}
	contracts.SortRecords(out)
	return out, nil
}

// UpsertBatch applies every record or none
func (s *Store) UpsertBatch(ctx context.Context, records []contracts.DemandRecord) (contracts.UpsertResult, error) {
	var res contracts.UpsertResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upserts++
	if s.failUpsertAfter > 0 && s.upserts > s.failUpsertAfter {
		return res, ErrInjected
	}

	for _, r := range records {
		if r.RentalsCount < 0 {
			return contracts.UpsertResult{}, fmt.Errorf("rentals_count must be non-negative, got %d", r.RentalsCount)
		}
	}

	for _, r := range records {
		table, ok := s.features[r.TenantID]
		if !ok {
			table = make(map[contracts.CellKey]contracts.DemandRecord)
			s.features[r.TenantID] = table
		}
		r.DemandDate = contracts.DateOf(r.DemandDate)
		if r.Split == "" {
			r.Split = contracts.SplitUnassigned
		}
		key := r.Cell()
		if _, exists := table[key]; exists {
			res.Updated++
		} else {
			res.Inserted++
		}
		table[key] = copyRecord(r)
	}
	return res, nil
}

func (s *Store) DeleteRange(ctx context.Context, tenantID int64, from, to time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to = contracts.DateOf(from), contracts.DateOf(to)
	n := 0
	for key, r := range s.features[tenantID] {
		if !r.DemandDate.Before(from) && !r.DemandDate.After(to) {
			delete(s.features[tenantID], key)
			n++
		}
	}
	return n, nil
}

func copyRecord(r contracts.DemandRecord) contracts.DemandRecord {
	r.Lags = r.Lags.Clone()
	return r
}

// === ForecastRepository ===

// ReplaceRun swaps the rows of (tenant, run_date)
func (s *Store) ReplaceRun(ctx context.Context, tenantID int64, runDate time.Time, records []contracts.ForecastRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runDate = contracts.DateOf(runDate)

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.HorizonDay < 1 {
			return fmt.Errorf("horizon_day must be >= 1, got %d", r.HorizonDay)
		}
		if r.ForecastDemand < 0 {
			return fmt.Errorf("forecast_demand must be >= 0, got %f", r.ForecastDemand)
		}
		key := fmt.Sprintf("%d/%d/%d", r.BranchID, r.CategoryID, r.HorizonDay)
		if seen[key] {
			return fmt.Errorf("duplicate forecast key %s", key)
		}
		seen[key] = true
	}

	rows := append([]contracts.ForecastRecord(nil), records...)
	sortForecasts(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forecasts[tenantID] == nil {
		s.forecasts[tenantID] = make(map[time.Time][]contracts.ForecastRecord)
	}
	s.forecasts[tenantID][runDate] = rows
	return nil
}

func (s *Store) LoadRun(ctx context.Context, tenantID int64, runDate time.Time) ([]contracts.ForecastRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.ForecastRecord(nil), s.forecasts[tenantID][contracts.DateOf(runDate)]...), nil
}

func (s *Store) LatestRunDate(ctx context.Context, tenantID int64) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for d := range s.forecasts[tenantID] {
		if latest == nil || d.After(*latest) {
			d := d
			latest = &d
		}
	}
	return latest, nil
}

func sortForecasts(rows []contracts.ForecastRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Series() != b.Series() {
			return a.Series().Less(b.Series())
		}
		return a.HorizonDay < b.HorizonDay
	})
}

// === BuildLog / RunLog ===

func (s *Store) SaveBuild(ctx context.Context, report *contracts.BuildReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds = append(s.builds, *report)
	return nil
}

// LatestValidation returns the newest non-empty validation report
func (s *Store) LatestValidation(ctx context.Context, tenantID int64) (*contracts.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.builds) - 1; i >= 0; i-- {
		b := s.builds[i]
		if b.TenantID == tenantID && !b.Validation.IsEmpty() {
			v := *b.Validation
			return &v, nil
		}
	}
	return nil, nil
}

// Builds returns every saved build report in order
func (s *Store) Builds() []contracts.BuildReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.BuildReport(nil), s.builds...)
}

func (s *Store) SaveTrainingResult(ctx context.Context, result *contracts.TrainingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *result)
	return nil
}

// LatestResults returns up to limit results of a tenant, newest first
func (s *Store) LatestResults(ctx context.Context, tenantID int64, limit int) ([]contracts.TrainingResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.TrainingResult, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.runs[i].TenantID == tenantID {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}

// TrainingResults returns every saved training result in order
func (s *Store) TrainingResults() []contracts.TrainingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.TrainingResult(nil), s.runs...)
}

// Interface checks
var (
	_ contracts.FeatureRepository  = (*Store)(nil)
	_ contracts.ForecastRepository = (*Store)(nil)
	_ contracts.BuildLog           = (*Store)(nil)
	_ contracts.RunLog             = (*Store)(nil)
)
