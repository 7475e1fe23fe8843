package contracts

import (
	"time"
)

// BuildReport feature store 빌드 결과 (호출마다 생성)
// ⭐ SSOT: 빌드 리포트 구조는 여기서만
type BuildReport struct {
	RunID     string    `json:"run_id"`
	TenantID  int64     `json:"tenant_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	StartedAt time.Time `json:"started_at"`

	Stage   Stage    `json:"stage"`
	Failure *Failure `json:"failure,omitempty"`

	RowsInserted    int `json:"rows_inserted"`
	RowsUpdated     int `json:"rows_updated"`
	WeatherUpdated  int `json:"weather_updated"`
	CalendarUpdated int `json:"calendar_updated"`
	EventsUpdated   int `json:"events_updated"`
	LagsUpdated     int `json:"lags_updated"`
	LagsRefreshed   int `json:"lags_refreshed"` // 범위 뒤쪽 기존 행
	RowsRelabeled   int `json:"rows_relabeled"` // 범위 밖 기존 행의 split 변경

	Splits              SplitCounts           `json:"splits"`
	Target              TargetStats           `json:"target"`
	FeatureCompleteness []FeatureCompleteness `json:"feature_completeness"`
	Coverage            Coverage              `json:"coverage"`
	Warnings            []SignalWarning       `json:"warnings,omitempty"`

	Validation *ValidationReport `json:"validation,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Succeeded reports whether the build committed its data
func (r *BuildReport) Succeeded() bool {
	return r != nil && r.Failure == nil
}

// SplitCounts 분할별 행 수
type SplitCounts struct {
	Train      int `json:"train"`
	Validation int `json:"validation"`
	Unassigned int `json:"unassigned"`
}

// Total returns the sum of all labels
func (s SplitCounts) Total() int {
	return s.Train + s.Validation + s.Unassigned
}

// TargetStats rentals_count 요약 통계
type TargetStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Std   float64 `json:"std"`
}

// FeatureCompleteness 피처별 non-null 비율
type FeatureCompleteness struct {
	Feature string  `json:"feature"`
	NonNull int     `json:"non_null"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"` // 100 × NonNull / Total
}

// Coverage 요청 범위 대비 실제 적재 범위
type Coverage struct {
	BranchesRequested   int `json:"branches_requested"`
	BranchesCovered     int `json:"branches_covered"`
	CategoriesRequested int `json:"categories_requested"`
	CategoriesCovered   int `json:"categories_covered"`
	Days                int `json:"days"`
	ExpectedCells       int `json:"expected_cells"`
	MaterializedCells   int `json:"materialized_cells"`
}

// SignalWarning SignalUnavailable 기록 (치명적이지 않음)
type SignalWarning struct {
	Kind          ErrorKind `json:"kind"`
	Signal        string    `json:"signal"` // weather, calendar, events
	BranchID      int64     `json:"branch_id,omitempty"`
	CellsAffected int       `json:"cells_affected"`
	Message       string    `json:"message"`
}

// ValidationReport 빌드 후 검증 결과
type ValidationReport struct {
	TenantID  int64         `json:"tenant_id"`
	CheckedAt time.Time     `json:"checked_at"`
	Passed    bool          `json:"passed"`
	Checks    []CheckResult `json:"checks"`
}

// IsEmpty reports whether no checks were run
func (v *ValidationReport) IsEmpty() bool {
	return v == nil || len(v.Checks) == 0
}

// FailedChecks returns the names of failing checks
func (v *ValidationReport) FailedChecks() []string {
	if v == nil {
		return nil
	}
	var failed []string
	for _, c := range v.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// CheckResult 단일 검증 항목
type CheckResult struct {
	Name      string   `json:"name"`
	Passed    bool     `json:"passed"`
	Observed  float64  `json:"observed"`
	Threshold *float64 `json:"threshold,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// FeatureStoreStats 저장된 팩트 테이블 요약 (stats 명령)
type FeatureStoreStats struct {
	TenantID            int64                 `json:"tenant_id"`
	TotalRows           int                   `json:"total_rows"`
	FirstDate           *time.Time            `json:"first_date,omitempty"`
	LastDate            *time.Time            `json:"last_date,omitempty"`
	Branches            int                   `json:"branches"`
	Categories          int                   `json:"categories"`
	Splits              SplitCounts           `json:"splits"`
	Target              TargetStats           `json:"target"`
	FeatureCompleteness []FeatureCompleteness `json:"feature_completeness"`
}
