package forecast

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// Ridge L2-regularized least squares over standardized design features
type Ridge struct {
	lambda float64
	design *Design

	mean, scale []float64
	intercept   float64
	beta        []float64
}

// NewRidge creates an untrained ridge model
func NewRidge(p pipelineconfig.RidgeParams, design *Design) *Ridge {
	return &Ridge{lambda: p.Lambda, design: design}
}

func (m *Ridge) Name() string              { return ModelRidge }
func (m *Ridge) Kind() contracts.ModelKind { return contracts.ModelKindLearned }

// Fit solves (ZᵀZ + λI)β = Zᵀ(y - ȳ) by Cholesky
func (m *Ridge) Fit(ctx context.Context, data *Dataset) error {
	m.design.FitImputation(data)
	rows, y := m.design.Matrix(data)
	if len(y) == 0 {
		return errors.New("ridge_regression: no training rows")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, w := len(y), m.design.Width()
	X := mat.NewDense(n, w, rows)

	m.mean = make([]float64, w)
	m.scale = make([]float64, w)
	col := make([]float64, n)
	for j := 0; j < w; j++ {
		mat.Col(col, j, X)
		mu, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || n < 2 {
			sd = 1
		}
		m.mean[j], m.scale[j] = mu, sd
		for i := 0; i < n; i++ {
			X.Set(i, j, (col[i]-mu)/sd)
		}
	}

	m.intercept = stat.Mean(y, nil)
	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-m.intercept, yc)

	var gram mat.SymDense
	gram.SymOuterK(1, X.T())
	for j := 0; j < w; j++ {
		// 상수 열(분산 0) 이 있어도 양의 정부호 유지
		gram.SetSym(j, j, gram.At(j, j)+m.lambda+1e-8)
	}

	var rhs mat.VecDense
	rhs.MulVec(X.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.New("ridge_regression: normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return fmt.Errorf("ridge_regression: solve: %w", err)
	}

	m.beta = make([]float64, w)
	for j := range m.beta {
		m.beta[j] = beta.AtVec(j)
	}
	return nil
}

func (m *Ridge) predict(x []float64) float64 {
	v := m.intercept
	for j, b := range m.beta {
		v += b * (x[j] - m.mean[j]) / m.scale[j]
	}
	return v
}

func (m *Ridge) Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error) {
	if m.beta == nil {
		return nil, errors.New("ridge_regression: not fitted")
	}
	level := history.Mean()
	x := make([]float64, m.design.Width())
	return recursive(ctx, history, future, func(values []float64, t int, cov Covariates) float64 {
		m.design.Row(x, values, t, cov, level)
		return m.predict(x)
	})
}
