package s2_features

import (
	"math"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// ValidationWindow returns the number of trailing days labelled VALIDATION
func ValidationWindow(days int, cfg pipelineconfig.Split) int {
	if cfg.ValidationDays > 0 {
		return cfg.ValidationDays
	}
	// 부동소수 오차로 정수 경계가 한 칸 밀리지 않도록 보정
	return int(math.Ceil(cfg.ValidationFraction*float64(days) - 1e-9))
}

// SplitCutoff returns the first VALIDATION date of [from, to].
// 범위가 검증 구간 이하이면 from (전부 VALIDATION).
func SplitCutoff(from, to time.Time, cfg pipelineconfig.Split) time.Time {
	days := contracts.DaysBetween(from, to)
	window := ValidationWindow(days, cfg)
	if window >= days {
		return contracts.DateOf(from)
	}
	return contracts.DateOf(to).AddDate(0, 0, -(window - 1))
}

// TenantCutoff returns the one cutoff of the tenant table after building [from, to].
// ⭐ SSOT: 테넌트 전체 (저장 행 ∪ 빌드 범위) 기준으로 계산, 부분 재빌드도 같은 경계 사용
func TenantCutoff(stored []contracts.DemandRecord, from, to time.Time, cfg pipelineconfig.Split) time.Time {
	first, last := contracts.DateOf(from), contracts.DateOf(to)
	for _, r := range stored {
		if r.DemandDate.Before(first) {
			first = contracts.DateOf(r.DemandDate)
		}
		if r.DemandDate.After(last) {
			last = contracts.DateOf(r.DemandDate)
		}
	}
	return SplitCutoff(first, last, cfg)
}

// LabelFor returns the split of date under cutoff
func LabelFor(date, cutoff time.Time) contracts.SplitLabel {
	if date.Before(cutoff) {
		return contracts.SplitTrain
	}
	return contracts.SplitValidation
}

// AssignSplit labels records in [from, to] with the range's own cutoff; records outside keep their label
func AssignSplit(records []*contracts.DemandRecord, from, to time.Time, cfg pipelineconfig.Split) contracts.SplitCounts {
	return AssignSplitAt(records, from, to, SplitCutoff(from, to, cfg))
}

// AssignSplitAt labels records in [from, to] against cutoff
func AssignSplitAt(records []*contracts.DemandRecord, from, to, cutoff time.Time) contracts.SplitCounts {
	from, to = contracts.DateOf(from), contracts.DateOf(to)

	var counts contracts.SplitCounts
	for _, r := range records {
		if r.DemandDate.Before(from) || r.DemandDate.After(to) {
			continue
		}
		r.Split = LabelFor(r.DemandDate, cutoff)
		if r.Split == contracts.SplitTrain {
			counts.Train++
		} else {
			counts.Validation++
		}
	}
	return counts
}

// Relabel returns the stored rows outside [from, to] whose label disagrees with cutoff, relabelled
func Relabel(stored []contracts.DemandRecord, from, to, cutoff time.Time) []contracts.DemandRecord {
	from, to = contracts.DateOf(from), contracts.DateOf(to)

	var out []contracts.DemandRecord
	for _, r := range stored {
		if !r.DemandDate.Before(from) && !r.DemandDate.After(to) {
			continue
		}
		if want := LabelFor(r.DemandDate, cutoff); r.Split != want {
			r.Split = want
			out = append(out, r)
		}
	}
	return out
}
