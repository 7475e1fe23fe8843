package forecast

import (
	"fmt"

	"github.com/wonny/fleetcast/internal/contracts"
)

// Selection 챔피언 선택 결과
type Selection struct {
	Champion    string
	ChampionMAE float64
	BaselineMAE *float64
	Warnings    []string
}

// SelectChampion picks the lowest-MAE successful candidate (동률은 로스터 순서).
// learned 챔피언이 boundFactor × baseline MAE 를 넘으면 baseline 으로 교체.
// runs 는 로스터 순서여야 함.
func SelectChampion(runs []contracts.ModelRun, baseline string, boundFactor float64) (*Selection, error) {
	var (
		best     *contracts.ModelRun
		baseRun  *contracts.ModelRun
		failures int
	)
	for i := range runs {
		r := &runs[i]
		if !r.Succeeded() {
			failures++
			continue
		}
		if r.ModelName == baseline {
			baseRun = r
		}
		if best == nil || r.Metrics.MAE < best.Metrics.MAE {
			best = r
		}
	}
	if best == nil {
		return nil, contracts.Errorf(contracts.KindNoViableModel, contracts.StageSelected,
			"all %d candidates failed", len(runs))
	}

	sel := &Selection{Champion: best.ModelName, ChampionMAE: best.Metrics.MAE}
	if baseRun == nil {
		sel.Warnings = append(sel.Warnings, fmt.Sprintf("baseline %s failed; champion %s selected without baseline bound", baseline, best.ModelName))
		return sel, nil
	}

	baseMAE := baseRun.Metrics.MAE
	sel.BaselineMAE = &baseMAE
	if best.Kind == contracts.ModelKindLearned && best.Metrics.MAE > boundFactor*baseMAE {
		sel.Warnings = append(sel.Warnings, fmt.Sprintf("%s MAE %.4f exceeds %.2f × baseline MAE %.4f; baseline selected",
			best.ModelName, best.Metrics.MAE, boundFactor, baseMAE))
		sel.Champion, sel.ChampionMAE = baseRun.ModelName, baseMAE
	}
	if failures > 0 {
		sel.Warnings = append(sel.Warnings, fmt.Sprintf("%d of %d candidates failed", failures, len(runs)))
	}
	return sel, nil
}
