package s2_features

import (
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// BuildGrid materializes one record per (date, branch, category) in [from, to].
// 원천 집계가 없는 셀은 rentals_count = 0, avg_daily_rate = null.
// 범위 밖 또는 scope 밖 집계는 무시.
func BuildGrid(scope *contracts.Scope, from, to time.Time, aggregates []contracts.DemandAggregate) []contracts.DemandRecord {
	if scope.IsEmpty() {
		return nil
	}
	from, to = contracts.DateOf(from), contracts.DateOf(to)

	byCell := make(map[contracts.CellKey]contracts.DemandAggregate, len(aggregates))
	for _, a := range aggregates {
		key := contracts.CellKey{
			Date:   contracts.DateOf(a.Date),
			Series: contracts.SeriesKey{BranchID: a.BranchID, CategoryID: a.CategoryID},
		}
		// 같은 셀의 중복 집계는 합산 (평균 단가는 첫 값 유지)
		if prev, ok := byCell[key]; ok {
			prev.Rentals += a.Rentals
			byCell[key] = prev
			continue
		}
		byCell[key] = a
	}

	series := scope.Series()
	days := contracts.DaysBetween(from, to)
	out := make([]contracts.DemandRecord, 0, days*len(series))

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, s := range series {
			rec := contracts.DemandRecord{
				TenantID:   scope.TenantID,
				DemandDate: d,
				BranchID:   s.BranchID,
				CategoryID: s.CategoryID,
				Split:      contracts.SplitUnassigned,
			}
			if a, ok := byCell[contracts.CellKey{Date: d, Series: s}]; ok {
				if a.Rentals > 0 {
					rec.RentalsCount = a.Rentals
				}
				rec.AvgDailyRate = a.AvgDailyRate
			}
			out = append(out, rec)
		}
	}
	return out
}
