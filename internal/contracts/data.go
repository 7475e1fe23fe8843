package contracts

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout 모든 날짜 직렬화 포맷 (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// SplitLabel train/validation 구분
type SplitLabel string

const (
	SplitTrain      SplitLabel = "TRAIN"
	SplitValidation SplitLabel = "VALIDATION"
	SplitUnassigned SplitLabel = "UNASSIGNED"
)

// SeriesKey identifies one (branch, category) demand series
type SeriesKey struct {
	BranchID   int64 `json:"branch_id"`
	CategoryID int64 `json:"category_id"`
}

// Less orders series by branch then category
func (k SeriesKey) Less(o SeriesKey) bool {
	if k.BranchID != o.BranchID {
		return k.BranchID < o.BranchID
	}
	return k.CategoryID < o.CategoryID
}

// CellKey identifies one grid cell (date × branch × category)
type CellKey struct {
	Date   time.Time
	Series SeriesKey
}

// DemandRecord 일별 수요 팩트 (date × branch × category)
// ⭐ SSOT: demand_features 테이블의 한 행
type DemandRecord struct {
	TenantID   int64     `json:"tenant_id"`
	DemandDate time.Time `json:"demand_date"`
	BranchID   int64     `json:"branch_id"`
	CategoryID int64     `json:"category_id"`

	// Target
	RentalsCount int                 `json:"rentals_count"`
	AvgDailyRate decimal.NullDecimal `json:"avg_daily_rate"`

	Calendar CalendarAttrs `json:"calendar"`
	Weather  WeatherAttrs  `json:"weather"`
	Event    EventAttrs    `json:"event"`

	// Lags 이름 → 값 (nil = 이력 부족)
	Lags LagFeatures `json:"lags"`

	Split SplitLabel `json:"split_label"`
}

// Series returns the record's series key
func (r DemandRecord) Series() SeriesKey {
	return SeriesKey{BranchID: r.BranchID, CategoryID: r.CategoryID}
}

// Cell returns the record's grid cell key
func (r DemandRecord) Cell() CellKey {
	return CellKey{Date: r.DemandDate, Series: r.Series()}
}

// LagFeatures holds causal lag/rolling values keyed by feature name
type LagFeatures map[string]*float64

// Names returns feature names in sorted order
func (l LagFeatures) Names() []string {
	names := make([]string, 0, len(l))
	for k := range l {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone copies the map (values are immutable pointers)
func (l LagFeatures) Clone() LagFeatures {
	if l == nil {
		return nil
	}
	out := make(LagFeatures, len(l))
	for k, v := range l {
		if v != nil {
			val := *v
			out[k] = &val
		} else {
			out[k] = nil
		}
	}
	return out
}

// SortRecords orders records by date, branch, category
func SortRecords(records []DemandRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.DemandDate.Equal(b.DemandDate) {
			return a.DemandDate.Before(b.DemandDate)
		}
		return a.Series().Less(b.Series())
	})
}

// DateOf truncates t to a UTC calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the inclusive number of calendar days in [from, to]
func DaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(DateOf(to).Sub(DateOf(from)).Hours()/24) + 1
}

// ParseDate parses YYYY-MM-DD as a UTC date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
