package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database"
)

// HolidayRepository implements contracts.HolidaySource on ksa_holidays
type HolidayRepository struct {
	q database.Querier
}

// NewHolidayRepository creates a new holiday reader
func NewHolidayRepository(q database.Querier) *HolidayRepository {
	return &HolidayRepository{q: q}
}

// HolidaysBetween returns holidays in [from, to] ordered by date
func (r *HolidayRepository) HolidaysBetween(ctx context.Context, from, to time.Time) ([]contracts.Holiday, error) {
	rows, err := r.q.Query(ctx, `
		SELECT holiday_date, name, holiday_type, is_public, is_religious
		FROM ksa_holidays
		WHERE holiday_date BETWEEN $1 AND $2
		ORDER BY holiday_date, name
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var out []contracts.Holiday
	for rows.Next() {
		var h contracts.Holiday
		if err := rows.Scan(&h.Date, &h.Name, &h.Type, &h.IsPublic, &h.Religious); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		h.Date = contracts.DateOf(h.Date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// SaveHolidays upserts holidays by (date, name)
func (r *HolidayRepository) SaveHolidays(ctx context.Context, holidays []contracts.Holiday) error {
	if len(holidays) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, h := range holidays {
		batch.Queue(`
			INSERT INTO ksa_holidays (holiday_date, name, holiday_type, is_public, is_religious)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (holiday_date, name) DO UPDATE SET
				holiday_type = EXCLUDED.holiday_type,
				is_public = EXCLUDED.is_public,
				is_religious = EXCLUDED.is_religious
		`, h.Date, h.Name, h.Type, h.IsPublic, h.Religious)
	}
	return sendBatch(ctx, r.q, batch)
}

// WeatherRepository implements contracts.WeatherSource on weather_data
type WeatherRepository struct {
	q database.Querier
}

// NewWeatherRepository creates a new weather reader/writer
func NewWeatherRepository(q database.Querier) *WeatherRepository {
	return &WeatherRepository{q: q}
}

// WeatherBetween returns the branch's stored observations in [from, to]
func (r *WeatherRepository) WeatherBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.WeatherObservation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT weather_date, branch_id, t_mean, t_max, t_min, precipitation_sum, wind_max, weather_code
		FROM weather_data
		WHERE branch_id = $1 AND weather_date BETWEEN $2 AND $3
		ORDER BY weather_date
	`, loc.BranchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query weather: %w", err)
	}
	defer rows.Close()

	var out []contracts.WeatherObservation
	for rows.Next() {
		var w contracts.WeatherObservation
		if err := rows.Scan(&w.Date, &w.BranchID, &w.TemperatureAvg, &w.TemperatureMax, &w.TemperatureMin,
			&w.PrecipitationMM, &w.WindMaxKMH, &w.WeatherCode); err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		w.Date = contracts.DateOf(w.Date)
		out = append(out, w)
	}
	return out, rows.Err()
}

// SaveObservations upserts observations by (date, branch)
func (r *WeatherRepository) SaveObservations(ctx context.Context, obs []contracts.WeatherObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range obs {
		batch.Queue(`
			INSERT INTO weather_data (weather_date, branch_id, t_mean, t_max, t_min, precipitation_sum, wind_max, weather_code, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (weather_date, branch_id) DO UPDATE SET
				t_mean = EXCLUDED.t_mean,
				t_max = EXCLUDED.t_max,
				t_min = EXCLUDED.t_min,
				precipitation_sum = EXCLUDED.precipitation_sum,
				wind_max = EXCLUDED.wind_max,
				weather_code = EXCLUDED.weather_code,
				fetched_at = NOW()
		`, w.Date, w.BranchID, w.TemperatureAvg, w.TemperatureMax, w.TemperatureMin,
			w.PrecipitationMM, w.WindMaxKMH, w.WeatherCode)
	}
	return sendBatch(ctx, r.q, batch)
}

// EventRepository implements contracts.EventSource on daily_event_signal
type EventRepository struct {
	q database.Querier
}

// NewEventRepository creates a new event reader
func NewEventRepository(q database.Querier) *EventRepository {
	return &EventRepository{q: q}
}

// EventsBetween returns event scores of the branch's city in [from, to]
func (r *EventRepository) EventsBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.EventSignal, error) {
	if loc.City == "" {
		return nil, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT event_date, city, event_score
		FROM daily_event_signal
		WHERE city = $1 AND event_date BETWEEN $2 AND $3
		ORDER BY event_date
	`, loc.City, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []contracts.EventSignal
	for rows.Next() {
		e := contracts.EventSignal{BranchID: loc.BranchID}
		if err := rows.Scan(&e.Date, &e.City, &e.Score); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Date = contracts.DateOf(e.Date)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveEvents upserts city event scores by (date, city)
func (r *EventRepository) SaveEvents(ctx context.Context, events []contracts.EventSignal) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO daily_event_signal (event_date, city, event_score)
			VALUES ($1, $2, $3)
			ON CONFLICT (event_date, city) DO UPDATE SET event_score = EXCLUDED.event_score
		`, e.Date, e.City, e.Score)
	}
	return sendBatch(ctx, r.q, batch)
}

func sendBatch(ctx context.Context, q database.Querier, batch *pgx.Batch) error {
	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}
