package forecast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/metrics"
)

// Publisher gates, persists and announces a forecast run
type Publisher struct {
	repo     contracts.ForecastRepository
	notifier contracts.ForecastNotifier
	detector *Detector
	log      zerolog.Logger
}

// NewPublisher creates a publisher. notifier 는 nil 가능.
func NewPublisher(repo contracts.ForecastRepository, notifier contracts.ForecastNotifier, flatlineStd float64, log zerolog.Logger) *Publisher {
	return &Publisher{
		repo:     repo,
		notifier: notifier,
		detector: NewDetector(flatlineStd),
		log:      log.With().Str("component", "forecast.publisher").Logger(),
	}
}

// Publish checks the gate, then replaces (tenant, run_date) in one transaction.
// 게이트 실패 시 아무것도 쓰지 않음. 게이트 경고와 알림 실패는 warnings 로 반환.
func (p *Publisher) Publish(ctx context.Context, tenantID int64, runDate time.Time, champion string, in GateInput) (warnings []string, err error) {
	warnings, err = p.detector.Check(in)
	if err != nil {
		metrics.PublishRejected.WithLabelValues(string(contracts.KindOf(err))).Inc()
		p.log.Warn().Err(err).Int64("tenant_id", tenantID).Msg("forecast rejected by gate")
		return nil, err
	}
	for _, w := range warnings {
		p.log.Warn().Int64("tenant_id", tenantID).Msg(w)
	}

	if err := p.repo.ReplaceRun(ctx, tenantID, runDate, in.Records); err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, contracts.StagePersisted, err)
	}
	metrics.ForecastsPublished.Add(float64(len(in.Records)))

	p.log.Info().
		Int64("tenant_id", tenantID).
		Str("run_date", runDate.Format(contracts.DateLayout)).
		Int("rows", len(in.Records)).
		Str("champion", champion).
		Msg("forecasts published")

	if p.notifier == nil {
		return warnings, nil
	}
	if err := p.notifier.NotifyPublished(ctx, tenantID, runDate, len(in.Records), champion); err != nil {
		p.log.Warn().Err(err).Msg("publish notification failed")
		warnings = append(warnings, "publish notification failed: "+err.Error())
	}
	return warnings, nil
}
