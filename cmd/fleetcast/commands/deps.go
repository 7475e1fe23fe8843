package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/external/openmeteo"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/s0_data"
	"github.com/wonny/fleetcast/internal/s1_signals"
	"github.com/wonny/fleetcast/internal/s2_features"
	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/database"
	"github.com/wonny/fleetcast/pkg/httputil"
	"github.com/wonny/fleetcast/pkg/logger"
	"github.com/wonny/fleetcast/pkg/redis"
	"github.com/wonny/fleetcast/pkg/sqlserver"
)

// errSourceNotOpened 소스 DB 없이 실행되는 명령이 스코프/대여 조회를 시도
var errSourceNotOpened = errors.New("rental source database not opened for this command")

// appDeps process-wide resources shared by every invocation of a command
type appDeps struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipelineconfig.Config

	db     *database.DB
	redis  *redis.Client
	source *sql.DB

	scopes  contracts.ScopeProvider
	rentals contracts.RentalSource
	weather contracts.WeatherSource // open-meteo upstream, nil 이면 DB 만 사용
}

// initDeps loads config and opens connections.
// withSource=false 인 명령은 SQL Server 에 연결하지 않음.
func initDeps(ctx context.Context, withSource bool) (*appDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.Pipeline.ConfigPath
	if pipelineConfig != "" {
		path = pipelineConfig
	}
	pcfg, err := pipelineconfig.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL, log.Component("migrate")); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	d := &appDeps{
		cfg:      cfg,
		log:      log,
		pipeline: pcfg,
		db:       db,
		scopes:   unavailableSource{},
		rentals:  unavailableSource{},
	}

	d.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		// 알림/캐시는 부가 기능: 비활성으로 계속
		log.WithError(err).Warn("Redis unavailable, continuing without cache and notifications")
		d.redis = redis.Disabled()
	}

	if withSource {
		d.source, err = sqlserver.Open(ctx, cfg.SourceDB)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to rental source: %w", err)
		}
		d.scopes = &s0_data.StaticScope{
			Provider: s0_data.NewScopeRepository(d.source),
			Tenants:  cfg.Pipeline.Tenants,
		}
		d.rentals = s0_data.NewRentalRepository(d.source, cfg.SourceDB.CompletedStatusID, cfg.SourceDB.QueryTimeout, log.Component("s0_data.rentals"))
	}

	if cfg.Weather.Source == "open-meteo" {
		httpClient := httputil.New(log).WithRateLimit(cfg.Weather.RatePerSecond)
		d.weather = openmeteo.NewClient(httpClient, redis.NewCache(d.redis, "fleetcast"), openmeteo.Config{
			ArchiveURL:     cfg.Weather.ArchiveURL,
			ForecastURL:    cfg.Weather.ForecastURL,
			Timezone:       cfg.Weather.Timezone,
			BreakerFailMax: cfg.Weather.BreakerFailMax,
			CacheTTL:       cfg.Weather.CacheTTL,
		}, log)
	}

	return d, nil
}

// Close releases every connection
func (d *appDeps) Close() {
	if d.source != nil {
		d.source.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
	d.db.Close()
}

// session acquires one pooled connection and binds the pipeline to it
func (d *appDeps) session(ctx context.Context) (*brain.Components, error) {
	sess, err := d.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	q := sess.Querier()
	zl := d.log.Zerolog()

	features := s2_features.NewRepository(q)
	buildLog := s2_features.NewBuildLogRepository(q)
	holidays := s0_data.NewHolidayRepository(q)

	var weather contracts.WeatherSource = s0_data.NewWeatherRepository(q)
	if d.weather != nil {
		weather = s0_data.NewPersistingWeatherSource(d.weather, s0_data.NewWeatherRepository(q), zl)
	}

	joiner := s1_signals.NewJoiner(holidays, weather, s0_data.NewEventRepository(q), d.pipeline.Features, zl)
	builder := s2_features.NewBuilder(features, buildLog, d.scopes, d.rentals, joiner, d.pipeline, d.log)

	publisher := forecast.NewPublisher(forecast.NewRepository(q), forecast.NewRedisNotifier(d.redis), d.pipeline.Training.FlatlineStdThreshold, zl)
	trainer, err := forecast.NewTrainer(features, buildLog, forecast.NewRunTracker(q), d.scopes, holidays, publisher, d.pipeline, zl)
	if err != nil {
		sess.Release()
		return nil, err
	}

	return &brain.Components{Builder: builder, Trainer: trainer, Release: sess.Release}, nil
}

func (d *appDeps) orchestrator() *brain.Orchestrator {
	return brain.NewOrchestrator(brain.FactoryFunc(d.session), d.log)
}

// withComponents runs fn on a fresh session and releases it
func (d *appDeps) withComponents(ctx context.Context, fn func(*brain.Components) error) error {
	comps, err := d.session(ctx)
	if err != nil {
		return fmt.Errorf("open pipeline session: %w", err)
	}
	defer comps.Release()
	return fn(comps)
}

// unavailableSource stands in for the rental source on commands that never read it
type unavailableSource struct{}

func (unavailableSource) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	return nil, errSourceNotOpened
}

func (unavailableSource) ActiveTenants(ctx context.Context) ([]int64, error) {
	return nil, errSourceNotOpened
}

func (unavailableSource) DailyDemand(ctx context.Context, scope *contracts.Scope, from, to time.Time) ([]contracts.DemandAggregate, error) {
	return nil, errSourceNotOpened
}

// parseDateFlag parses an optional YYYY-MM-DD flag; 빈 값은 zero time
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := contracts.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (use YYYY-MM-DD): %w", name, value, err)
	}
	return d, nil
}
