package s0_data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database/dbtest"
	"github.com/wonny/fleetcast/pkg/logger"
)

func TestInList(t *testing.T) {
	clause, args := inList("b", []int64{10, 20, 30})
	assert.Equal(t, "@b0, @b1, @b2", clause)
	require.Len(t, args, 3)
	assert.Equal(t, sql.Named("b1", int64(20)), args[1])

	clause, args = inList("c", nil)
	assert.Equal(t, "NULL", clause)
	assert.Empty(t, args)
}

func TestRentalRepository_EmptyScopeSkipsQuery(t *testing.T) {
	// nil db: 쿼리 실행 시 panic → 빈 scope 는 쿼리 없이 반환되어야 함
	repo := NewRentalRepository(nil, 211, time.Second, logger.Nop().Zerolog())
	out, err := repo.DailyDemand(context.Background(), &contracts.Scope{TenantID: 1}, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, out)
}

type fixedScope struct{ tenants []int64 }

func (f fixedScope) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	return &contracts.Scope{TenantID: tenantID}, nil
}

func (f fixedScope) ActiveTenants(ctx context.Context) ([]int64, error) { return f.tenants, nil }

func TestStaticScope(t *testing.T) {
	ctx := context.Background()

	s := &StaticScope{Provider: fixedScope{tenants: []int64{1, 2}}}
	got, err := s.ActiveTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	s.Tenants = []int64{7}
	got, _ = s.ActiveTenants(ctx)
	assert.Equal(t, []int64{7}, got)
}

func TestSignalRepositories(t *testing.T) {
	tdb := dbtest.GetTestDB(t)
	tdb.Truncate(t, "ksa_holidays", "weather_data", "daily_event_signal")
	ctx := context.Background()
	q := tdb.DB.Pool

	d1 := time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	holidays := NewHolidayRepository(q)
	require.NoError(t, holidays.SaveHolidays(ctx, []contracts.Holiday{
		{Date: d1, Name: "Founding Day", Type: "national", IsPublic: true},
	}))
	hs, err := holidays.HolidaysBetween(ctx, d1, d2)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "Founding Day", hs[0].Name)
	assert.True(t, hs[0].Date.Equal(d1))

	weather := NewWeatherRepository(q)
	code := 3
	require.NoError(t, weather.SaveObservations(ctx, []contracts.WeatherObservation{
		{Date: d1, BranchID: 10, TemperatureAvg: contracts.Float(21.5), WeatherCode: &code},
		{Date: d2, BranchID: 10},
	}))
	ws, err := weather.WeatherBetween(ctx, contracts.BranchLocation{BranchID: 10}, d1, d2)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, 21.5, *ws[0].TemperatureAvg)
	assert.Nil(t, ws[1].TemperatureAvg)

	events := NewEventRepository(q)
	require.NoError(t, events.SaveEvents(ctx, []contracts.EventSignal{{Date: d2, City: "Riyadh", Score: 4}}))
	es, err := events.EventsBetween(ctx, contracts.BranchLocation{BranchID: 10, City: "Riyadh"}, d1, d2)
	require.NoError(t, err)
	require.Len(t, es, 1)
	assert.Equal(t, int64(10), es[0].BranchID)

	none, err := events.EventsBetween(ctx, contracts.BranchLocation{BranchID: 10}, d1, d2)
	require.NoError(t, err)
	assert.Empty(t, none, "branch without city has no events")
}
