package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	in := time.Date(2025, 3, 14, 23, 30, 0, 0, loc)

	got := DateOf(in)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(from, from))
	assert.Equal(t, 31, DaysBetween(from, from.AddDate(0, 0, 30)))
	assert.Equal(t, 0, DaysBetween(from, from.AddDate(0, 0, -1)))
}

func TestScope_Series(t *testing.T) {
	scope := &Scope{
		TenantID:   1,
		Branches:   []BranchLocation{{BranchID: 10}, {BranchID: 20}},
		Categories: []int64{3, 4},
	}

	assert.False(t, scope.IsEmpty())
	assert.Equal(t, []SeriesKey{
		{BranchID: 10, CategoryID: 3},
		{BranchID: 10, CategoryID: 4},
		{BranchID: 20, CategoryID: 3},
		{BranchID: 20, CategoryID: 4},
	}, scope.Series())
	assert.Equal(t, []int64{10, 20}, scope.BranchIDs())
}

func TestScope_IsEmpty(t *testing.T) {
	var nilScope *Scope
	assert.True(t, nilScope.IsEmpty())
	assert.True(t, (&Scope{Branches: []BranchLocation{{BranchID: 1}}}).IsEmpty())
	assert.True(t, (&Scope{Categories: []int64{1}}).IsEmpty())
}

func TestSortRecords(t *testing.T) {
	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	records := []DemandRecord{
		{DemandDate: d2, BranchID: 1, CategoryID: 1},
		{DemandDate: d1, BranchID: 2, CategoryID: 1},
		{DemandDate: d1, BranchID: 1, CategoryID: 2},
		{DemandDate: d1, BranchID: 1, CategoryID: 1},
	}

	SortRecords(records)

	assert.Equal(t, CellKey{Date: d1, Series: SeriesKey{1, 1}}, records[0].Cell())
	assert.Equal(t, CellKey{Date: d1, Series: SeriesKey{1, 2}}, records[1].Cell())
	assert.Equal(t, CellKey{Date: d1, Series: SeriesKey{2, 1}}, records[2].Cell())
	assert.Equal(t, CellKey{Date: d2, Series: SeriesKey{1, 1}}, records[3].Cell())
}

func TestLagFeatures_CloneIsDeep(t *testing.T) {
	orig := LagFeatures{"rentals_lag_1d": Float(3), "rentals_lag_7d": nil}
	cp := orig.Clone()

	*cp["rentals_lag_1d"] = 99
	assert.Equal(t, 3.0, *orig["rentals_lag_1d"])
	assert.Nil(t, cp["rentals_lag_7d"])
	assert.Equal(t, []string{"rentals_lag_1d", "rentals_lag_7d"}, cp.Names())
}
