package s1_signals

import (
	"strings"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// CalendarJoiner derives calendar attributes from the date and a holiday table
type CalendarJoiner struct {
	weekend  map[time.Weekday]bool
	holidays map[time.Time]contracts.Holiday
}

// NewCalendarJoiner indexes holidays by date. 같은 날짜의 휴일은 병합.
func NewCalendarJoiner(weekendDays []int, holidays []contracts.Holiday) *CalendarJoiner {
	j := &CalendarJoiner{
		weekend:  make(map[time.Weekday]bool, len(weekendDays)),
		holidays: make(map[time.Time]contracts.Holiday, len(holidays)),
	}
	for _, d := range weekendDays {
		j.weekend[time.Weekday(d)] = true
	}

	for _, h := range holidays {
		day := contracts.DateOf(h.Date)
		prev, ok := j.holidays[day]
		if !ok {
			h.Date = day
			j.holidays[day] = h
			continue
		}
		if !strings.Contains(prev.Name, h.Name) {
			prev.Name = prev.Name + " / " + h.Name
		}
		prev.IsPublic = prev.IsPublic || h.IsPublic
		prev.Religious = prev.Religious || h.Religious
		j.holidays[day] = prev
	}
	return j
}

// Attrs returns the calendar attributes of date
func (j *CalendarJoiner) Attrs(date time.Time) contracts.CalendarAttrs {
	day := contracts.DateOf(date)
	_, week := day.ISOWeek()

	attrs := contracts.CalendarAttrs{
		DayOfWeek:  int(day.Weekday()),
		DayOfMonth: day.Day(),
		WeekOfYear: week,
		Month:      int(day.Month()),
		Quarter:    (int(day.Month())-1)/3 + 1,
		IsWeekend:  j.weekend[day.Weekday()],
	}

	if h, ok := j.holidays[day]; ok {
		attrs.IsPublicHoliday = h.IsPublic
		attrs.IsReligiousHoliday = h.Religious
		attrs.HolidayName = h.Name
	}
	return attrs
}
