package s2_features

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// History date → rentals_count of one series (존재하는 레코드만)
type History map[time.Time]float64

// ComputeLags returns every configured lag/rolling feature of date from history.
// 모든 키가 존재하며 값이 없으면 nil. date 이후 값은 절대 참조하지 않음.
func ComputeLags(history History, date time.Time, f pipelineconfig.Features) contracts.LagFeatures {
	date = contracts.DateOf(date)
	out := make(contracts.LagFeatures, len(f.LagDays)+len(f.RollingWindows))

	for _, d := range f.LagDays {
		if v, ok := history[date.AddDate(0, 0, -d)]; ok {
			out[pipelineconfig.LagName(d)] = contracts.Float(v)
		} else {
			out[pipelineconfig.LagName(d)] = nil
		}
	}

	minPeriods := f.RollingMinPeriods
	if minPeriods < 1 {
		minPeriods = 1
	}
	for _, w := range f.RollingWindows {
		sum, n := 0.0, 0
		for k := 1; k <= w; k++ {
			if v, ok := history[date.AddDate(0, 0, -k)]; ok {
				sum += v
				n++
			}
		}
		if n >= minPeriods {
			out[pipelineconfig.RollingName(w)] = contracts.Float(sum / float64(n))
		} else {
			out[pipelineconfig.RollingName(w)] = nil
		}
	}
	return out
}

// LagInput 한 series 의 래그 계산 입력
type LagInput struct {
	Series contracts.SeriesKey
	// Context 범위 이전 저장 레코드 (이력 전용, 재기록 안 함)
	Context []contracts.DemandRecord
	// Records 이번 빌드 레코드 (래그 계산 대상)
	Records []*contracts.DemandRecord
	// Trailing 범위 이후 저장 레코드 (래그 갱신 대상)
	Trailing []*contracts.DemandRecord
}

// LagResult 한 series 의 계산 결과
type LagResult struct {
	Updated   int
	Refreshed []*contracts.DemandRecord
}

// ComputeSeriesLags fills Lags on inp.Records and on trailing records whose lags changed
func ComputeSeriesLags(inp LagInput, f pipelineconfig.Features) LagResult {
	history := make(History, len(inp.Context)+len(inp.Records)+len(inp.Trailing))
	for _, r := range inp.Context {
		history[r.DemandDate] = float64(r.RentalsCount)
	}
	for _, r := range inp.Trailing {
		history[r.DemandDate] = float64(r.RentalsCount)
	}
	// 이번 빌드 값이 저장된 값을 덮어씀
	for _, r := range inp.Records {
		history[r.DemandDate] = float64(r.RentalsCount)
	}

	var res LagResult
	for _, r := range inp.Records {
		r.Lags = ComputeLags(history, r.DemandDate, f)
		res.Updated++
	}
	for _, r := range inp.Trailing {
		fresh := ComputeLags(history, r.DemandDate, f)
		if !LagsEqual(r.Lags, fresh) {
			r.Lags = fresh
			res.Refreshed = append(res.Refreshed, r)
		}
	}
	return res
}

// ComputeAllLags fans out per series with a bounded errgroup; sequential within a series
func ComputeAllLags(ctx context.Context, inputs []LagInput, f pipelineconfig.Features) (updated int, refreshed []*contracts.DemandRecord, err error) {
	results := make([]LagResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	workers := f.LagWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ComputeSeriesLags(inputs[i], f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	for _, r := range results {
		updated += r.Updated
		refreshed = append(refreshed, r.Refreshed...)
	}
	return updated, refreshed, nil
}

// LagsEqual compares two feature maps by key and value
func LagsEqual(a, b contracts.LagFeatures) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if (av == nil) != (bv == nil) {
			return false
		}
		if av != nil && *av != *bv {
			return false
		}
	}
	return true
}
