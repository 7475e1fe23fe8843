package s2_features

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database"
)

// Repository implements contracts.FeatureRepository on demand_features
// ⭐ SSOT: demand_features 읽기/쓰기는 여기서만
type Repository struct {
	q database.Querier
}

// NewRepository binds the repository to a session or pool
func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

const featureColumns = `
	tenant_id, demand_date, branch_id, category_id,
	rentals_count, avg_daily_rate::text,
	day_of_week, day_of_month, week_of_year, month, quarter,
	is_weekend, is_public_holiday, is_religious_holiday, COALESCE(holiday_name, ''),
	temperature_avg, temperature_max, temperature_min, precipitation_mm, wind_max_kmh,
	weather_code, bad_weather_score, extreme_heat,
	event_score, has_major_event,
	lag_features, split_label`

// LoadRange returns rows with from <= demand_date <= to
func (r *Repository) LoadRange(ctx context.Context, tenantID int64, from, to time.Time) ([]contracts.DemandRecord, error) {
	return r.query(ctx, `
		SELECT `+featureColumns+`
		FROM demand_features
		WHERE tenant_id = $1 AND demand_date BETWEEN $2 AND $3
		ORDER BY demand_date, branch_id, category_id
	`, tenantID, from, to)
}

// LoadSplit returns every row with the given label
func (r *Repository) LoadSplit(ctx context.Context, tenantID int64, split contracts.SplitLabel) ([]contracts.DemandRecord, error) {
	return r.query(ctx, `
		SELECT `+featureColumns+`
		FROM demand_features
		WHERE tenant_id = $1 AND split_label = $2
		ORDER BY demand_date, branch_id, category_id
	`, tenantID, string(split))
}

// LoadAll returns the tenant's full table
func (r *Repository) LoadAll(ctx context.Context, tenantID int64) ([]contracts.DemandRecord, error) {
	return r.query(ctx, `
		SELECT `+featureColumns+`
		FROM demand_features
		WHERE tenant_id = $1
		ORDER BY demand_date, branch_id, category_id
	`, tenantID)
}

func (r *Repository) query(ctx context.Context, sql string, args ...interface{}) ([]contracts.DemandRecord, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query demand_features: %w", err)
	}
	defer rows.Close()

	var out []contracts.DemandRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (contracts.DemandRecord, error) {
	var (
		rec   contracts.DemandRecord
		rate  *string
		lags  []byte
		split string
	)
	err := row.Scan(
		&rec.TenantID, &rec.DemandDate, &rec.BranchID, &rec.CategoryID,
		&rec.RentalsCount, &rate,
		&rec.Calendar.DayOfWeek, &rec.Calendar.DayOfMonth, &rec.Calendar.WeekOfYear, &rec.Calendar.Month, &rec.Calendar.Quarter,
		&rec.Calendar.IsWeekend, &rec.Calendar.IsPublicHoliday, &rec.Calendar.IsReligiousHoliday, &rec.Calendar.HolidayName,
		&rec.Weather.TemperatureAvg, &rec.Weather.TemperatureMax, &rec.Weather.TemperatureMin, &rec.Weather.PrecipitationMM, &rec.Weather.WindMaxKMH,
		&rec.Weather.WeatherCode, &rec.Weather.BadWeatherScore, &rec.Weather.ExtremeHeat,
		&rec.Event.EventScore, &rec.Event.HasMajorEvent,
		&lags, &split,
	)
	if err != nil {
		return rec, fmt.Errorf("scan demand_features: %w", err)
	}

	rec.DemandDate = contracts.DateOf(rec.DemandDate)
	rec.Split = contracts.SplitLabel(split)
	if rate != nil {
		d, err := decimal.NewFromString(*rate)
		if err != nil {
			return rec, fmt.Errorf("parse avg_daily_rate %q: %w", *rate, err)
		}
		rec.AvgDailyRate = decimal.NewNullDecimal(d)
	}
	if len(lags) > 0 {
		if err := json.Unmarshal(lags, &rec.Lags); err != nil {
			return rec, fmt.Errorf("decode lag_features: %w", err)
		}
	}
	return rec, nil
}

const upsertSQL = `
	INSERT INTO demand_features (
		tenant_id, demand_date, branch_id, category_id,
		rentals_count, avg_daily_rate,
		day_of_week, day_of_month, week_of_year, month, quarter,
		is_weekend, is_public_holiday, is_religious_holiday, holiday_name,
		temperature_avg, temperature_max, temperature_min, precipitation_mm, wind_max_kmh,
		weather_code, bad_weather_score, extreme_heat,
		event_score, has_major_event,
		lag_features, split_label, updated_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6::numeric,
		$7, $8, $9, $10, $11,
		$12, $13, $14, NULLIF($15, ''),
		$16, $17, $18, $19, $20,
		$21, $22, $23,
		$24, $25,
		$26::jsonb, $27, NOW()
	)
	ON CONFLICT (tenant_id, demand_date, branch_id, category_id) DO UPDATE SET
		rentals_count = EXCLUDED.rentals_count,
		avg_daily_rate = EXCLUDED.avg_daily_rate,
		day_of_week = EXCLUDED.day_of_week,
		day_of_month = EXCLUDED.day_of_month,
		week_of_year = EXCLUDED.week_of_year,
		month = EXCLUDED.month,
		quarter = EXCLUDED.quarter,
		is_weekend = EXCLUDED.is_weekend,
		is_public_holiday = EXCLUDED.is_public_holiday,
		is_religious_holiday = EXCLUDED.is_religious_holiday,
		holiday_name = EXCLUDED.holiday_name,
		temperature_avg = EXCLUDED.temperature_avg,
		temperature_max = EXCLUDED.temperature_max,
		temperature_min = EXCLUDED.temperature_min,
		precipitation_mm = EXCLUDED.precipitation_mm,
		wind_max_kmh = EXCLUDED.wind_max_kmh,
		weather_code = EXCLUDED.weather_code,
		bad_weather_score = EXCLUDED.bad_weather_score,
		extreme_heat = EXCLUDED.extreme_heat,
		event_score = EXCLUDED.event_score,
		has_major_event = EXCLUDED.has_major_event,
		lag_features = EXCLUDED.lag_features,
		split_label = EXCLUDED.split_label,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted`

// UpsertBatch writes records in a single transaction
func (r *Repository) UpsertBatch(ctx context.Context, records []contracts.DemandRecord) (contracts.UpsertResult, error) {
	var res contracts.UpsertResult
	if len(records) == 0 {
		return res, nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		args, err := upsertArgs(&records[i])
		if err != nil {
			return res, err
		}
		batch.Queue(upsertSQL, args...)
	}

	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := 0; i < batch.Len(); i++ {
			var inserted bool
			if err := br.QueryRow().Scan(&inserted); err != nil {
				return fmt.Errorf("upsert %s: %w", describe(&records[i]), err)
			}
			if inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}
		return br.Close()
	})
	if err != nil {
		return contracts.UpsertResult{}, err
	}
	return res, nil
}

func upsertArgs(rec *contracts.DemandRecord) ([]interface{}, error) {
	lags := rec.Lags
	if lags == nil {
		lags = contracts.LagFeatures{}
	}
	lagJSON, err := json.Marshal(lags)
	if err != nil {
		return nil, fmt.Errorf("encode lag_features: %w", err)
	}

	var rate *string
	if rec.AvgDailyRate.Valid {
		s := rec.AvgDailyRate.Decimal.StringFixed(2)
		rate = &s
	}

	split := rec.Split
	if split == "" {
		split = contracts.SplitUnassigned
	}

	c, w, e := rec.Calendar, rec.Weather, rec.Event
	return []interface{}{
		rec.TenantID, rec.DemandDate, rec.BranchID, rec.CategoryID,
		rec.RentalsCount, rate,
		c.DayOfWeek, c.DayOfMonth, c.WeekOfYear, c.Month, c.Quarter,
		c.IsWeekend, c.IsPublicHoliday, c.IsReligiousHoliday, c.HolidayName,
		w.TemperatureAvg, w.TemperatureMax, w.TemperatureMin, w.PrecipitationMM, w.WindMaxKMH,
		w.WeatherCode, w.BadWeatherScore, w.ExtremeHeat,
		e.EventScore, e.HasMajorEvent,
		string(lagJSON), string(split),
	}, nil
}

// DeleteRange removes rows in [from, to]
func (r *Repository) DeleteRange(ctx context.Context, tenantID int64, from, to time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM demand_features
		WHERE tenant_id = $1 AND demand_date BETWEEN $2 AND $3
	`, tenantID, from, to)
	if err != nil {
		return 0, fmt.Errorf("delete demand_features: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func describe(rec *contracts.DemandRecord) string {
	return fmt.Sprintf("(%d, %s, %d, %d)", rec.TenantID, rec.DemandDate.Format(contracts.DateLayout), rec.BranchID, rec.CategoryID)
}
