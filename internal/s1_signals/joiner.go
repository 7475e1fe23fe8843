package s1_signals

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/pkg/metrics"
)

// Signal names used in warnings
const (
	SignalCalendar = "calendar"
	SignalWeather  = "weather"
	SignalEvents   = "events"
)

// Joiner loads every signal for a scope and range, then joins them onto records
// ⭐ SSOT: 시그널 조인은 여기서만
type Joiner struct {
	holidays contracts.HolidaySource
	weather  contracts.WeatherSource
	events   contracts.EventSource
	cfg      pipelineconfig.Features
	log      zerolog.Logger
}

// NewJoiner creates a joiner. nil sources are skipped (attributes stay null).
func NewJoiner(holidays contracts.HolidaySource, weather contracts.WeatherSource, events contracts.EventSource, cfg pipelineconfig.Features, log zerolog.Logger) *Joiner {
	return &Joiner{
		holidays: holidays,
		weather:  weather,
		events:   events,
		cfg:      cfg,
		log:      log.With().Str("component", "s1.signals").Logger(),
	}
}

// Signals holds the loaded lookups for one build
type Signals struct {
	Calendar *CalendarJoiner
	Weather  WeatherIndex
	Events   EventIndex
	Warnings []contracts.SignalWarning

	extremeHeatC    float64
	majorEventScore float64
}

// JoinStats 조인 결과 카운트 (non-null 로 기록된 행만)
type JoinStats struct {
	Calendar int
	Weather  int
	Events   int
}

// Load fetches holidays, weather and events. Source failures become
// SignalUnavailable warnings; Load itself never fails.
func (j *Joiner) Load(ctx context.Context, scope *contracts.Scope, from, to time.Time) *Signals {
	s := &Signals{
		Weather:         make(WeatherIndex),
		Events:          make(EventIndex),
		extremeHeatC:    j.cfg.ExtremeHeatC,
		majorEventScore: j.cfg.MajorEventScore,
	}

	days := contracts.DaysBetween(from, to)
	perBranch := days * len(scope.Categories)

	var holidays []contracts.Holiday
	if j.holidays != nil {
		hs, err := j.holidays.HolidaysBetween(ctx, from, to)
		if err != nil {
			s.warn(j.log, SignalCalendar, 0, days*len(scope.Series()), err)
		} else {
			holidays = hs
		}
	}
	s.Calendar = NewCalendarJoiner(j.cfg.WeekendDays, holidays)

	for _, b := range scope.Branches {
		if ctx.Err() != nil {
			break
		}

		if j.weather != nil {
			obs, err := j.weather.WeatherBetween(ctx, b, from, to)
			if err != nil {
				s.warn(j.log, SignalWeather, b.BranchID, perBranch, err)
			} else {
				s.Weather.Add(withBranch(obs, b.BranchID))
			}
		}

		if j.events != nil {
			evs, err := j.events.EventsBetween(ctx, b, from, to)
			if err != nil {
				s.warn(j.log, SignalEvents, b.BranchID, perBranch, err)
			} else {
				for i := range evs {
					evs[i].BranchID = b.BranchID
				}
				s.Events.Add(evs)
			}
		}
	}

	j.log.Debug().
		Int("holidays", len(holidays)).
		Int("weather_branches", len(s.Weather)).
		Int("event_branches", len(s.Events)).
		Int("warnings", len(s.Warnings)).
		Msg("Signals loaded")
	return s
}

func (s *Signals) warn(log zerolog.Logger, signal string, branchID int64, cells int, err error) {
	w := contracts.SignalWarning{
		Kind:          contracts.KindSignalUnavailable,
		Signal:        signal,
		BranchID:      branchID,
		CellsAffected: cells,
		Message:       err.Error(),
	}
	s.Warnings = append(s.Warnings, w)
	metrics.SignalWarnings.WithLabelValues(signal).Inc()

	log.Warn().
		Err(err).
		Str("signal", signal).
		Int64("branch_id", branchID).
		Int("cells_affected", cells).
		Msg("Signal unavailable, continuing with nulls")
}

// Apply joins calendar, weather and event attributes onto rec.
// 반환값: 각 시그널이 non-null 로 기록되었는지 여부
func (s *Signals) Apply(rec *contracts.DemandRecord) (calendar, weather, event bool) {
	rec.Calendar = s.Calendar.Attrs(rec.DemandDate)
	rec.Weather = s.Weather.Attrs(rec.DemandDate, rec.BranchID, s.extremeHeatC)
	rec.Event = s.Events.Attrs(rec.DemandDate, rec.BranchID, s.majorEventScore)
	return true, rec.Weather.HasAny(), rec.Event.HasAny()
}

// ApplyAll joins every record and returns per-signal counts
func (s *Signals) ApplyAll(records []contracts.DemandRecord) JoinStats {
	var st JoinStats
	for i := range records {
		c, w, e := s.Apply(&records[i])
		if c {
			st.Calendar++
		}
		if w {
			st.Weather++
		}
		if e {
			st.Events++
		}
	}
	return st
}

func withBranch(obs []contracts.WeatherObservation, branchID int64) []contracts.WeatherObservation {
	for i := range obs {
		obs[i].BranchID = branchID
	}
	return obs
}
