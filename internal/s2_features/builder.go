package s2_features

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/s1_signals"
	"github.com/wonny/fleetcast/pkg/logger"
	"github.com/wonny/fleetcast/pkg/metrics"
)

// BuildRequest 빌드 대상 범위. EndDate 가 zero 면 오늘.
type BuildRequest struct {
	TenantID  int64
	StartDate time.Time
	EndDate   time.Time
}

// Builder materializes the demand fact table for one tenant and range
// ⭐ SSOT: feature store 빌드 오케스트레이션은 여기서만
//
// INIT → GRID → SIGNALS → LAGS → SPLIT → PERSISTED → VALIDATED
type Builder struct {
	features contracts.FeatureRepository
	buildLog contracts.BuildLog
	scopes   contracts.ScopeProvider
	rentals  contracts.RentalSource
	joiner   *s1_signals.Joiner

	cfg       *pipelineconfig.Config
	validator *Validator
	logger    *logger.Logger
	now       func() time.Time
}

// NewBuilder creates a new feature store builder
func NewBuilder(
	features contracts.FeatureRepository,
	buildLog contracts.BuildLog,
	scopes contracts.ScopeProvider,
	rentals contracts.RentalSource,
	joiner *s1_signals.Joiner,
	cfg *pipelineconfig.Config,
	logger *logger.Logger,
) *Builder {
	return &Builder{
		features:  features,
		buildLog:  buildLog,
		scopes:    scopes,
		rentals:   rentals,
		joiner:    joiner,
		cfg:       cfg,
		validator: NewValidator(cfg.Validation),
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock (tests, simulation)
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) today() time.Time {
	return contracts.DateOf(b.now().In(b.cfg.Meta.Location()))
}

// Build runs every stage and always returns a report.
// 치명적 오류 시 report.Failure 와 동일한 *PipelineError 를 반환.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*contracts.BuildReport, error) {
	startedAt := b.now()
	tracker := contracts.NewBuildTracker()
	report := &contracts.BuildReport{
		RunID:     uuid.NewString(),
		TenantID:  req.TenantID,
		StartDate: contracts.DateOf(req.StartDate),
		StartedAt: startedAt,
	}
	if req.EndDate.IsZero() {
		report.EndDate = b.today()
	} else {
		report.EndDate = contracts.DateOf(req.EndDate)
	}

	err := b.build(ctx, tracker, report)
	if err != nil {
		reached := tracker.Fail()
		report.Failure = contracts.FailureFrom(err, reached, contracts.KindPersistenceFailure)
		if contracts.KindOf(err) == "" {
			err = contracts.NewError(report.Failure.Kind, reached, err)
		}
	}
	report.Stage = tracker.Current()
	report.Duration = time.Since(startedAt)

	// 실패한 빌드도 감사 로그에 남김
	if saveErr := b.buildLog.SaveBuild(ctx, report); saveErr != nil {
		b.logger.WithError(saveErr).WithField("run_id", report.RunID).Warn("Failed to save build report")
	}
	metrics.ObserveBuild(report.Succeeded(), report.Duration, report.RowsInserted, report.RowsUpdated)

	fields := map[string]interface{}{
		"run_id":    report.RunID,
		"tenant_id": report.TenantID,
		"stage":     report.Stage,
		"inserted":  report.RowsInserted,
		"updated":   report.RowsUpdated,
		"relabeled": report.RowsRelabeled,
		"warnings":  len(report.Warnings),
		"duration":  report.Duration.String(),
	}
	if err != nil {
		fields["failure_kind"] = report.Failure.Kind
		b.logger.WithFields(fields).WithError(err).Error("Feature store build failed")
		return report, err
	}
	fields["validation_passed"] = report.Validation.Passed
	b.logger.WithFields(fields).Info("Feature store build completed")
	return report, nil
}

func (b *Builder) build(ctx context.Context, tracker *contracts.StageTracker, report *contracts.BuildReport) error {
	// === INIT ===
	if report.TenantID <= 0 {
		return contracts.Errorf(contracts.KindInvalidInput, contracts.StageInit, "tenant id must be positive, got %d", report.TenantID)
	}
	if report.StartDate.IsZero() {
		return contracts.Errorf(contracts.KindInvalidInput, contracts.StageInit, "start date is required")
	}
	if report.StartDate.After(report.EndDate) {
		return contracts.Errorf(contracts.KindInvalidInput, contracts.StageInit, "start date %s is after end date %s",
			report.StartDate.Format(contracts.DateLayout), report.EndDate.Format(contracts.DateLayout))
	}
	from, to := report.StartDate, report.EndDate

	scope, err := b.scopes.ActiveScope(ctx, report.TenantID)
	if err != nil {
		return contracts.NewError(contracts.KindSourceUnavailable, contracts.StageInit, fmt.Errorf("resolve scope: %w", err))
	}
	if scope.IsEmpty() {
		return contracts.Errorf(contracts.KindEmptyScope, contracts.StageInit, "tenant %d has no active branch/category selection", report.TenantID)
	}

	b.logger.WithFields(map[string]interface{}{
		"run_id":     report.RunID,
		"tenant_id":  report.TenantID,
		"from":       from.Format(contracts.DateLayout),
		"to":         to.Format(contracts.DateLayout),
		"branches":   len(scope.Branches),
		"categories": len(scope.Categories),
	}).Info("Starting feature store build")

	// === GRID ===
	aggregates, err := b.rentals.DailyDemand(ctx, scope, from, to)
	if err != nil {
		return contracts.NewError(contracts.KindSourceUnavailable, contracts.StageGrid, fmt.Errorf("load rentals: %w", err))
	}
	records := BuildGrid(scope, from, to, aggregates)
	tracker.Advance(contracts.StageGrid)

	// === SIGNALS ===
	signals := b.joiner.Load(ctx, scope, from, to)
	joined := signals.ApplyAll(records)
	report.CalendarUpdated = joined.Calendar
	report.WeatherUpdated = joined.Weather
	report.EventsUpdated = joined.Events
	report.Warnings = signals.Warnings
	tracker.Advance(contracts.StageSignals)

	// === LAGS ===
	refreshed, err := b.computeLags(ctx, scope, records, report)
	if err != nil {
		return err
	}
	tracker.Advance(contracts.StageLags)

	// === SPLIT ===
	stored, err := b.features.LoadAll(ctx, report.TenantID)
	if err != nil {
		return contracts.NewError(contracts.KindPersistenceFailure, contracts.StageSplit, fmt.Errorf("load stored table: %w", err))
	}
	cutoff := TenantCutoff(stored, from, to, b.cfg.Split)
	ptrs := make([]*contracts.DemandRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	report.Splits = AssignSplitAt(ptrs, from, to, cutoff)
	refreshed = withRelabeled(refreshed, Relabel(stored, from, to, cutoff), cutoff, report)
	tracker.Advance(contracts.StageSplit)

	// === PERSISTED ===
	if err := b.persist(ctx, records, refreshed, report); err != nil {
		return err
	}
	tracker.Advance(contracts.StagePersisted)

	report.Target = TargetSummary(records)
	report.FeatureCompleteness = Completeness(records, ReportedFeatures(b.cfg.Features))
	report.Coverage = CoverageOf(scope, records, contracts.DaysBetween(from, to))

	// === VALIDATED ===
	all, err := b.features.LoadAll(ctx, report.TenantID)
	if err != nil {
		return contracts.NewError(contracts.KindPersistenceFailure, contracts.StageValidated, fmt.Errorf("load stored table: %w", err))
	}
	report.Validation = b.validator.Validate(report.TenantID, all, scope, b.now())
	tracker.Advance(contracts.StageValidated)

	if !report.Validation.Passed {
		b.logger.WithFields(map[string]interface{}{
			"run_id":        report.RunID,
			"failed_checks": report.Validation.FailedChecks(),
		}).Warn("Feature store validation failed")
	}
	return nil
}

// computeLags loads stored history around the range and fills lags per series.
// 범위 뒤쪽 저장 행은 값이 바뀐 경우만 refreshed 로 반환.
func (b *Builder) computeLags(ctx context.Context, scope *contracts.Scope, records []contracts.DemandRecord, report *contracts.BuildReport) ([]contracts.DemandRecord, error) {
	window := b.cfg.Features.MaxWindow()
	from, to := report.StartDate, report.EndDate

	stored, err := b.features.LoadRange(ctx, report.TenantID, from.AddDate(0, 0, -window), to.AddDate(0, 0, window))
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, contracts.StageLags, fmt.Errorf("load lag context: %w", err))
	}

	inputs := make(map[contracts.SeriesKey]*LagInput)
	order := scope.Series()
	for _, s := range order {
		inputs[s] = &LagInput{Series: s}
	}
	for i := range records {
		if inp, ok := inputs[records[i].Series()]; ok {
			inp.Records = append(inp.Records, &records[i])
		}
	}
	for i := range stored {
		inp, ok := inputs[stored[i].Series()]
		if !ok {
			continue
		}
		switch {
		case stored[i].DemandDate.Before(from):
			inp.Context = append(inp.Context, stored[i])
		case stored[i].DemandDate.After(to):
			inp.Trailing = append(inp.Trailing, &stored[i])
		}
	}

	list := make([]LagInput, 0, len(order))
	for _, s := range order {
		list = append(list, *inputs[s])
	}

	updated, changed, err := ComputeAllLags(ctx, list, b.cfg.Features)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, contracts.StageLags, err)
	}
	report.LagsUpdated = updated
	report.LagsRefreshed = len(changed)

	refreshed := make([]contracts.DemandRecord, len(changed))
	for i, r := range changed {
		refreshed[i] = *r
	}
	contracts.SortRecords(refreshed)
	return refreshed, nil
}

// withRelabeled puts the cutoff label on refreshed rows and adds the relabeled stored rows.
// 같은 셀은 refreshed 쪽 (새 래그) 을 유지.
func withRelabeled(refreshed, relabeled []contracts.DemandRecord, cutoff time.Time, report *contracts.BuildReport) []contracts.DemandRecord {
	seen := make(map[contracts.CellKey]bool, len(refreshed))
	for i := range refreshed {
		refreshed[i].Split = LabelFor(refreshed[i].DemandDate, cutoff)
		seen[refreshed[i].Cell()] = true
	}
	for _, r := range relabeled {
		if !seen[r.Cell()] {
			refreshed = append(refreshed, r)
		}
	}
	report.RowsRelabeled = len(relabeled)
	contracts.SortRecords(refreshed)
	return refreshed
}

// persist upserts records in batch_days chunks, one transaction per chunk
func (b *Builder) persist(ctx context.Context, records, refreshed []contracts.DemandRecord, report *contracts.BuildReport) error {
	for _, batch := range BatchByDays(records, b.cfg.Features.BatchDays) {
		res, err := b.features.UpsertBatch(ctx, batch)
		if err != nil {
			return contracts.NewError(contracts.KindPersistenceFailure, contracts.StagePersisted, err)
		}
		report.RowsInserted += res.Inserted
		report.RowsUpdated += res.Updated
	}

	if len(refreshed) > 0 {
		if _, err := b.features.UpsertBatch(ctx, refreshed); err != nil {
			return contracts.NewError(contracts.KindPersistenceFailure, contracts.StagePersisted, fmt.Errorf("refresh trailing rows: %w", err))
		}
	}
	return nil
}

// BatchByDays splits date-ordered records into chunks spanning at most days dates
func BatchByDays(records []contracts.DemandRecord, days int) [][]contracts.DemandRecord {
	if len(records) == 0 {
		return nil
	}
	if days < 1 {
		days = 1
	}

	var out [][]contracts.DemandRecord
	start := 0
	first := records[0].DemandDate
	for i := range records {
		if contracts.DaysBetween(first, records[i].DemandDate) > days {
			out = append(out, records[start:i])
			start = i
			first = records[i].DemandDate
		}
	}
	return append(out, records[start:])
}

// Validate re-runs the post-build checks over the stored table without building
func (b *Builder) Validate(ctx context.Context, tenantID int64) (*contracts.ValidationReport, error) {
	scope, err := b.scopes.ActiveScope(ctx, tenantID)
	if err != nil {
		return nil, contracts.NewError(contracts.KindSourceUnavailable, contracts.StageInit, fmt.Errorf("resolve scope: %w", err))
	}
	all, err := b.features.LoadAll(ctx, tenantID)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, contracts.StageValidated, err)
	}
	return b.validator.Validate(tenantID, all, scope, b.now()), nil
}

// Stats summarizes the tenant's stored table
func (b *Builder) Stats(ctx context.Context, tenantID int64) (*contracts.FeatureStoreStats, error) {
	all, err := b.features.LoadAll(ctx, tenantID)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, "", err)
	}
	return StoreStats(tenantID, all, b.cfg.Features), nil
}

// Clear deletes [from, to] for the tenant
func (b *Builder) Clear(ctx context.Context, tenantID int64, from, to time.Time) (int, error) {
	from, to = contracts.DateOf(from), contracts.DateOf(to)
	if from.After(to) {
		return 0, contracts.Errorf(contracts.KindInvalidInput, "", "from %s is after to %s",
			from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}
	n, err := b.features.DeleteRange(ctx, tenantID, from, to)
	if err != nil {
		return 0, contracts.NewError(contracts.KindPersistenceFailure, "", err)
	}

	b.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"from":      from.Format(contracts.DateLayout),
		"to":        to.Format(contracts.DateLayout),
		"deleted":   n,
	}).Warn("Feature store range cleared")
	return n, nil
}
