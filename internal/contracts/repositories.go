package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository / 외부 협력자 인터페이스 정의는 여기서만

// UpsertResult 배치 upsert 결과
type UpsertResult struct {
	Inserted int
	Updated  int
}

// FeatureRepository reads and writes DemandRecord rows by key range
type FeatureRepository interface {
	// LoadRange returns rows with from <= demand_date <= to, ordered by date, branch, category
	LoadRange(ctx context.Context, tenantID int64, from, to time.Time) ([]DemandRecord, error)
	// LoadSplit returns every row with the given label, ordered
	LoadSplit(ctx context.Context, tenantID int64, split SplitLabel) ([]DemandRecord, error)
	// LoadAll returns the tenant's full table, ordered
	LoadAll(ctx context.Context, tenantID int64) ([]DemandRecord, error)
	// UpsertBatch writes records in a single transaction keyed by (tenant, date, branch, category)
	UpsertBatch(ctx context.Context, records []DemandRecord) (UpsertResult, error)
	// DeleteRange removes rows in [from, to]; returns rows deleted
	DeleteRange(ctx context.Context, tenantID int64, from, to time.Time) (int, error)
}

// ForecastRepository reads and writes ForecastRecord rows by key
type ForecastRepository interface {
	// ReplaceRun deletes (tenant, run_date) and inserts records in one transaction
	ReplaceRun(ctx context.Context, tenantID int64, runDate time.Time, records []ForecastRecord) error
	// LoadRun returns the rows of (tenant, run_date) ordered by branch, category, horizon
	LoadRun(ctx context.Context, tenantID int64, runDate time.Time) ([]ForecastRecord, error)
	// LatestRunDate returns the most recent run_date, nil when none
	LatestRunDate(ctx context.Context, tenantID int64) (*time.Time, error)
}

// BuildLog 빌드 리포트 감사 로그
type BuildLog interface {
	SaveBuild(ctx context.Context, report *BuildReport) error
	LatestValidation(ctx context.Context, tenantID int64) (*ValidationReport, error)
}

// RunLog 학습 결과 감사 로그
type RunLog interface {
	SaveTrainingResult(ctx context.Context, result *TrainingResult) error
}

// ForecastNotifier 가격 레이어에 발행 알림
type ForecastNotifier interface {
	NotifyPublished(ctx context.Context, tenantID int64, runDate time.Time, rows int, champion string) error
}

// ScopeProvider resolves a tenant's active branch/category selection
type ScopeProvider interface {
	ActiveScope(ctx context.Context, tenantID int64) (*Scope, error)
	ActiveTenants(ctx context.Context) ([]int64, error)
}

// RentalSource aggregates completed rentals from the transactional system
type RentalSource interface {
	DailyDemand(ctx context.Context, scope *Scope, from, to time.Time) ([]DemandAggregate, error)
}

// HolidaySource 휴일 조회
type HolidaySource interface {
	HolidaysBetween(ctx context.Context, from, to time.Time) ([]Holiday, error)
}

// WeatherSource 날씨 조회 (지점 위치 기준)
type WeatherSource interface {
	WeatherBetween(ctx context.Context, loc BranchLocation, from, to time.Time) ([]WeatherObservation, error)
}

// EventSource 지역 이벤트 조회
type EventSource interface {
	EventsBetween(ctx context.Context, loc BranchLocation, from, to time.Time) ([]EventSignal, error)
}
