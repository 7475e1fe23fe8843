package s2_features

import (
	"fmt"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// Check names
const (
	CheckRowCount          = "row_count"
	CheckMinimumRows       = "minimum_rows"
	CheckSplitDistribution = "split_distribution"
	CheckSplitNonOverlap   = "split_non_overlap"
	CheckTargetFinite      = "target_finite_non_negative"
	CheckTargetVariance    = "target_variance"
	CheckCompletenessFmt   = "completeness:%s"
	CheckScopeCoverage     = "scope_coverage"
)

// Validator runs the post-build checks over a tenant's stored table
// ⭐ SSOT: 빌드 후 검증 항목은 여기서만
type Validator struct {
	cfg pipelineconfig.Validation
}

// NewValidator creates a new validator
func NewValidator(cfg pipelineconfig.Validation) *Validator {
	return &Validator{cfg: cfg}
}

// Validate evaluates every check. scope may be nil (coverage check skipped).
func (v *Validator) Validate(tenantID int64, records []contracts.DemandRecord, scope *contracts.Scope, now time.Time) *contracts.ValidationReport {
	report := &contracts.ValidationReport{TenantID: tenantID, CheckedAt: now}
	add := func(c contracts.CheckResult) {
		report.Checks = append(report.Checks, c)
	}

	n := len(records)
	add(contracts.CheckResult{
		Name: CheckRowCount, Passed: n > 0, Observed: float64(n), Threshold: threshold(0),
	})
	add(contracts.CheckResult{
		Name: CheckMinimumRows, Passed: n >= v.cfg.MinRows, Observed: float64(n), Threshold: threshold(float64(v.cfg.MinRows)),
	})

	// === Split ===
	splits := SplitSummary(records)
	validationShare := 0.0
	if n > 0 {
		validationShare = 100 * float64(splits.Validation) / float64(n)
	}
	add(contracts.CheckResult{
		Name:     CheckSplitDistribution,
		Passed:   splits.Train > 0 && splits.Validation > 0,
		Observed: validationShare,
		Detail:   fmt.Sprintf("train=%d validation=%d unassigned=%d", splits.Train, splits.Validation, splits.Unassigned),
	})
	add(v.nonOverlap(records))

	// === Target ===
	bad := 0
	for _, r := range records {
		if r.RentalsCount < 0 {
			bad++
		}
	}
	add(contracts.CheckResult{
		Name: CheckTargetFinite, Passed: bad == 0, Observed: float64(bad), Threshold: threshold(0),
	})

	target := TargetSummary(records)
	add(contracts.CheckResult{
		Name:      CheckTargetVariance,
		Passed:    target.Std > v.cfg.MinTargetStd,
		Observed:  target.Std,
		Threshold: threshold(v.cfg.MinTargetStd),
	})

	// === Completeness ===
	for _, fc := range Completeness(records, v.cfg.RequiredFeatures) {
		add(contracts.CheckResult{
			Name:      fmt.Sprintf(CheckCompletenessFmt, fc.Feature),
			Passed:    n > 0 && fc.Percent >= v.cfg.CompletenessFloorPct,
			Observed:  fc.Percent,
			Threshold: threshold(v.cfg.CompletenessFloorPct),
			Detail:    fmt.Sprintf("%d/%d non-null", fc.NonNull, fc.Total),
		})
	}

	// === Coverage ===
	if !scope.IsEmpty() {
		cov := CoverageOf(scope, records, 0)
		requested := cov.BranchesRequested * cov.CategoriesRequested
		covered := cov.BranchesCovered * cov.CategoriesCovered
		add(contracts.CheckResult{
			Name:      CheckScopeCoverage,
			Passed:    cov.BranchesCovered == cov.BranchesRequested && cov.CategoriesCovered == cov.CategoriesRequested,
			Observed:  100 * float64(covered) / float64(requested),
			Threshold: threshold(100),
			Detail: fmt.Sprintf("branches %d/%d categories %d/%d",
				cov.BranchesCovered, cov.BranchesRequested, cov.CategoriesCovered, cov.CategoriesRequested),
		})
	}

	report.Passed = true
	for _, c := range report.Checks {
		if !c.Passed {
			report.Passed = false
			break
		}
	}
	return report
}

func (v *Validator) nonOverlap(records []contracts.DemandRecord) contracts.CheckResult {
	res := contracts.CheckResult{Name: CheckSplitNonOverlap}

	train := sortedDates(records, contracts.SplitTrain)
	val := sortedDates(records, contracts.SplitValidation)
	if len(train) == 0 || len(val) == 0 {
		res.Detail = "train or validation split is empty"
		return res
	}

	maxTrain := time.Unix(train[len(train)-1], 0).UTC()
	minVal := time.Unix(val[0], 0).UTC()
	gap := minVal.Sub(maxTrain).Hours() / 24

	res.Observed = gap
	res.Threshold = threshold(0)
	res.Passed = maxTrain.Before(minVal)
	res.Detail = fmt.Sprintf("max train %s, min validation %s",
		maxTrain.Format(contracts.DateLayout), minVal.Format(contracts.DateLayout))
	return res
}

func threshold(v float64) *float64 {
	return &v
}
