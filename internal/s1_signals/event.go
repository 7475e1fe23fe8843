package s1_signals

import (
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// EventIndex branch → date → event score
type EventIndex map[int64]map[time.Time]float64

// Add indexes event signals; multiple signals on one day keep the strongest
func (ix EventIndex) Add(events []contracts.EventSignal) {
	for _, e := range events {
		byDate, ok := ix[e.BranchID]
		if !ok {
			byDate = make(map[time.Time]float64)
			ix[e.BranchID] = byDate
		}
		day := contracts.DateOf(e.Date)
		if prev, ok := byDate[day]; !ok || e.Score > prev {
			byDate[day] = e.Score
		}
	}
}

// Attrs returns the event attributes of (date, branch); nil when missing
func (ix EventIndex) Attrs(date time.Time, branchID int64, majorScore float64) contracts.EventAttrs {
	score, ok := ix[branchID][contracts.DateOf(date)]
	if !ok {
		return contracts.EventAttrs{}
	}
	major := score >= majorScore
	return contracts.EventAttrs{EventScore: &score, HasMajorEvent: &major}
}
