package forecast

import (
	"context"
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// maxBins 피처당 후보 분할 임계값 수
const maxBins = 32

// GradientBoosting squared-loss boosting of depth-limited regression trees.
// 분할 탐색은 분위수 bin 히스토그램으로 수행.
type GradientBoosting struct {
	p      pipelineconfig.BoostingParams
	design *Design

	base  float64
	trees []*treeNode
}

// NewGradientBoosting creates an untrained boosting model
func NewGradientBoosting(p pipelineconfig.BoostingParams, design *Design) *GradientBoosting {
	return &GradientBoosting{p: p, design: design}
}

func (m *GradientBoosting) Name() string              { return ModelGradientBoosting }
func (m *GradientBoosting) Kind() contracts.ModelKind { return contracts.ModelKindLearned }

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// binned 학습 행렬의 bin 인덱스 표현
type binned struct {
	n, w       int
	bins       [][]uint8   // [feature][row]
	thresholds [][]float64 // [feature][bin] 상한값
}

func binMatrix(rows []float64, n, w int) *binned {
	b := &binned{n: n, w: w, bins: make([][]uint8, w), thresholds: make([][]float64, w)}
	col := make([]float64, n)
	for j := 0; j < w; j++ {
		for i := 0; i < n; i++ {
			col[i] = rows[i*w+j]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)

		var cuts []float64
		for k := 1; k < maxBins; k++ {
			q := sorted[k*(n-1)/maxBins]
			if len(cuts) == 0 || q > cuts[len(cuts)-1] {
				cuts = append(cuts, q)
			}
		}
		b.thresholds[j] = cuts

		idx := make([]uint8, n)
		for i, v := range col {
			idx[i] = uint8(sort.SearchFloat64s(cuts, v))
		}
		b.bins[j] = idx
	}
	return b
}

// Fit trains Estimators trees on residuals
func (m *GradientBoosting) Fit(ctx context.Context, data *Dataset) error {
	m.design.FitImputation(data)
	rows, y := m.design.Matrix(data)
	n := len(y)
	if n < 2*m.p.MinLeaf {
		return errors.New("gradient_boosting: not enough training rows")
	}
	w := m.design.Width()
	b := binMatrix(rows, n, w)

	m.base = stat.Mean(y, nil)
	m.trees = m.trees[:0]
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.base
	}
	resid := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for e := 0; e < m.p.Estimators; e++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tree := m.grow(b, resid, all, 0)
		m.trees = append(m.trees, tree)
		for i := 0; i < n; i++ {
			pred[i] += m.p.LearningRate * tree.predict(rows[i*w:(i+1)*w])
		}
	}
	return nil
}

func (m *GradientBoosting) grow(b *binned, resid []float64, idx []int, depth int) *treeNode {
	sum := 0.0
	for _, i := range idx {
		sum += resid[i]
	}
	leaf := &treeNode{leaf: true, value: sum / float64(len(idx))}
	if depth >= m.p.MaxDepth || len(idx) < 2*m.p.MinLeaf {
		return leaf
	}

	bestGain, bestFeature, bestBin := 0.0, -1, 0
	total := float64(len(idx))
	var sums [maxBins + 1]float64
	var counts [maxBins + 1]int

	for j := 0; j < b.w; j++ {
		nb := len(b.thresholds[j]) + 1
		for k := 0; k < nb; k++ {
			sums[k], counts[k] = 0, 0
		}
		col := b.bins[j]
		for _, i := range idx {
			sums[col[i]] += resid[i]
			counts[col[i]]++
		}

		leftSum, leftN := 0.0, 0
		for k := 0; k < nb-1; k++ {
			leftSum += sums[k]
			leftN += counts[k]
			rightN := len(idx) - leftN
			if leftN < m.p.MinLeaf || rightN < m.p.MinLeaf {
				continue
			}
			rightSum := sum - leftSum
			// 분산 감소량 (상수항 생략)
			gain := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN) - sum*sum/total
			if gain > bestGain {
				bestGain, bestFeature, bestBin = gain, j, k
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	col := b.bins[bestFeature]
	var left, right []int
	for _, i := range idx {
		if int(col[i]) <= bestBin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature:   bestFeature,
		threshold: b.thresholds[bestFeature][bestBin],
		left:      m.grow(b, resid, left, depth+1),
		right:     m.grow(b, resid, right, depth+1),
	}
}

func (m *GradientBoosting) predict(x []float64) float64 {
	v := m.base
	for _, t := range m.trees {
		v += m.p.LearningRate * t.predict(x)
	}
	return v
}

func (m *GradientBoosting) Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, errors.New("gradient_boosting: not fitted")
	}
	level := history.Mean()
	x := make([]float64, m.design.Width())
	return recursive(ctx, history, future, func(values []float64, t int, cov Covariates) float64 {
		m.design.Row(x, values, t, cov, level)
		return m.predict(x)
	})
}
