package s2_features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// TargetSummary computes rentals_count statistics (표본 표준편차)
func TargetSummary(records []contracts.DemandRecord) contracts.TargetStats {
	if len(records) == 0 {
		return contracts.TargetStats{}
	}

	xs := make([]float64, len(records))
	for i, r := range records {
		xs[i] = float64(r.RentalsCount)
	}

	st := contracts.TargetStats{
		Count: len(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
	}
	if len(xs) < 2 {
		st.Mean = xs[0]
		return st
	}
	st.Mean, st.Std = stat.MeanStdDev(xs, nil)
	return st
}

// SplitSummary counts records per split label
func SplitSummary(records []contracts.DemandRecord) contracts.SplitCounts {
	var c contracts.SplitCounts
	for _, r := range records {
		switch r.Split {
		case contracts.SplitTrain:
			c.Train++
		case contracts.SplitValidation:
			c.Validation++
		default:
			c.Unassigned++
		}
	}
	return c
}

// FeatureValue reads a named feature from rec. ok=false 면 알 수 없는 이름.
func FeatureValue(rec *contracts.DemandRecord, name string) (v *float64, ok bool) {
	if val, found := rec.Lags[name]; found {
		return val, true
	}
	switch name {
	case "temperature_avg":
		return rec.Weather.TemperatureAvg, true
	case "temperature_max":
		return rec.Weather.TemperatureMax, true
	case "temperature_min":
		return rec.Weather.TemperatureMin, true
	case "precipitation_mm":
		return rec.Weather.PrecipitationMM, true
	case "wind_max_kmh":
		return rec.Weather.WindMaxKMH, true
	case "weather_code":
		if rec.Weather.WeatherCode == nil {
			return nil, true
		}
		return contracts.Float(float64(*rec.Weather.WeatherCode)), true
	case "event_score":
		return rec.Event.EventScore, true
	}
	return nil, false
}

// Completeness returns the non-null percentage of each feature, in names order
func Completeness(records []contracts.DemandRecord, names []string) []contracts.FeatureCompleteness {
	out := make([]contracts.FeatureCompleteness, 0, len(names))
	for _, name := range names {
		fc := contracts.FeatureCompleteness{Feature: name, Total: len(records)}
		for i := range records {
			if v, _ := FeatureValue(&records[i], name); v != nil && !math.IsNaN(*v) {
				fc.NonNull++
			}
		}
		if fc.Total > 0 {
			fc.Percent = 100 * float64(fc.NonNull) / float64(fc.Total)
		}
		out = append(out, fc)
	}
	return out
}

// ReportedFeatures lag/rolling names followed by signal columns
func ReportedFeatures(f pipelineconfig.Features) []string {
	return append(f.FeatureNames(), pipelineconfig.SignalFeatures...)
}

// StoreStats summarizes a tenant's full table
func StoreStats(tenantID int64, records []contracts.DemandRecord, f pipelineconfig.Features) *contracts.FeatureStoreStats {
	st := &contracts.FeatureStoreStats{
		TenantID:            tenantID,
		TotalRows:           len(records),
		Splits:              SplitSummary(records),
		Target:              TargetSummary(records),
		FeatureCompleteness: Completeness(records, ReportedFeatures(f)),
	}
	if len(records) == 0 {
		return st
	}

	branches := make(map[int64]bool)
	categories := make(map[int64]bool)
	first, last := records[0].DemandDate, records[0].DemandDate
	for _, r := range records {
		branches[r.BranchID] = true
		categories[r.CategoryID] = true
		if r.DemandDate.Before(first) {
			first = r.DemandDate
		}
		if r.DemandDate.After(last) {
			last = r.DemandDate
		}
	}
	st.FirstDate, st.LastDate = &first, &last
	st.Branches, st.Categories = len(branches), len(categories)
	return st
}

// CoverageOf compares materialized records against the requested scope
func CoverageOf(scope *contracts.Scope, records []contracts.DemandRecord, days int) contracts.Coverage {
	cov := contracts.Coverage{Days: days}
	if scope.IsEmpty() {
		return cov
	}

	cov.BranchesRequested = len(scope.Branches)
	cov.CategoriesRequested = len(scope.Categories)
	cov.ExpectedCells = days * len(scope.Branches) * len(scope.Categories)

	wantBranch := make(map[int64]bool)
	for _, b := range scope.Branches {
		wantBranch[b.BranchID] = true
	}
	wantCat := make(map[int64]bool)
	for _, c := range scope.Categories {
		wantCat[c] = true
	}

	gotBranch := make(map[int64]bool)
	gotCat := make(map[int64]bool)
	cells := make(map[contracts.CellKey]bool)
	for _, r := range records {
		if !wantBranch[r.BranchID] || !wantCat[r.CategoryID] {
			continue
		}
		gotBranch[r.BranchID] = true
		gotCat[r.CategoryID] = true
		cells[r.Cell()] = true
	}
	cov.BranchesCovered = len(gotBranch)
	cov.CategoriesCovered = len(gotCat)
	cov.MaterializedCells = len(cells)
	return cov
}

func sortedDates(records []contracts.DemandRecord, label contracts.SplitLabel) []int64 {
	var out []int64
	for _, r := range records {
		if r.Split == label {
			out = append(out, r.DemandDate.Unix())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
