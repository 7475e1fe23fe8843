package forecast

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
)

// GateInput 발행 전 품질 검사 입력
type GateInput struct {
	Records []contracts.ForecastRecord
	Pairs   []contracts.SeriesKey
	Horizon int
	// Varying 이력이 상수가 아닌 series (flatline 검사 대상)
	Varying map[contracts.SeriesKey]bool
}

// Detector rejects incomplete or degenerate forecast runs
// ⭐ SSOT: 발행 게이트 규칙은 여기서만
type Detector struct {
	flatlineStd float64
}

// NewDetector creates a gate with the flatline threshold
func NewDetector(flatlineStd float64) *Detector {
	return &Detector{flatlineStd: flatlineStd}
}

// Check returns IncompleteHorizon, NonFiniteForecast or FlatlineForecast, nil when publishable.
// flatline 은 run 전체 기준, pair 단위 flatline 은 경고로만 반환.
func (d *Detector) Check(in GateInput) (warnings []string, err error) {
	byPair := make(map[contracts.SeriesKey][]contracts.ForecastRecord, len(in.Pairs))
	for _, r := range in.Records {
		if math.IsNaN(r.ForecastDemand) || math.IsInf(r.ForecastDemand, 0) {
			return nil, contracts.Errorf(contracts.KindNonFiniteForecast, contracts.StagePersisted,
				"branch %d category %d horizon %d: non-finite forecast %v", r.BranchID, r.CategoryID, r.HorizonDay, r.ForecastDemand)
		}
		byPair[r.Series()] = append(byPair[r.Series()], r)
	}

	expected := make(map[contracts.SeriesKey]bool, len(in.Pairs))
	for _, p := range in.Pairs {
		expected[p] = true
	}
	for k := range byPair {
		if !expected[k] {
			return nil, contracts.Errorf(contracts.KindIncompleteHorizon, contracts.StagePersisted,
				"branch %d category %d is not in scope", k.BranchID, k.CategoryID)
		}
	}

	pairs := append([]contracts.SeriesKey(nil), in.Pairs...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })

	varying := false
	for _, p := range pairs {
		rows := byPair[p]
		days := make(map[int]bool, len(rows))
		for _, r := range rows {
			if r.HorizonDay >= 1 && r.HorizonDay <= in.Horizon {
				days[r.HorizonDay] = true
			}
		}
		if len(days) != in.Horizon || len(rows) != in.Horizon {
			return nil, contracts.Errorf(contracts.KindIncompleteHorizon, contracts.StagePersisted,
				"branch %d category %d: %d distinct horizon days of %d (%d rows)",
				p.BranchID, p.CategoryID, len(days), in.Horizon, len(rows))
		}

		if in.Horizon < 2 || !in.Varying[p] {
			continue
		}
		varying = true
		if std := stat.StdDev(demands(rows), nil); !(std > d.flatlineStd) {
			warnings = append(warnings, fmt.Sprintf("branch %d category %d: flat forecast (std %.4f) on varying history",
				p.BranchID, p.CategoryID, std))
		}
	}

	if in.Horizon < 2 || !varying {
		return warnings, nil
	}
	if std := stat.StdDev(demands(in.Records), nil); !(std > d.flatlineStd) {
		return nil, contracts.Errorf(contracts.KindFlatlineForecast, contracts.StagePersisted,
			"forecast std %.4f <= %.4f across %d rows", std, d.flatlineStd, len(in.Records))
	}
	return warnings, nil
}

func demands(rows []contracts.ForecastRecord) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.ForecastDemand
	}
	return out
}
