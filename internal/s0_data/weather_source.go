package s0_data

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
)

// PersistingWeatherSource reads from an upstream API and writes the result through to weather_data
type PersistingWeatherSource struct {
	upstream contracts.WeatherSource
	store    *WeatherRepository
	log      zerolog.Logger
}

// NewPersistingWeatherSource wraps upstream with write-through persistence
func NewPersistingWeatherSource(upstream contracts.WeatherSource, store *WeatherRepository, log zerolog.Logger) *PersistingWeatherSource {
	return &PersistingWeatherSource{
		upstream: upstream,
		store:    store,
		log:      log.With().Str("component", "s0.weather").Logger(),
	}
}

// WeatherBetween fetches from upstream; a failed write-through is logged, not returned
func (s *PersistingWeatherSource) WeatherBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.WeatherObservation, error) {
	obs, err := s.upstream.WeatherBetween(ctx, loc, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveObservations(ctx, obs); err != nil {
		s.log.Warn().Err(err).Int64("branch_id", loc.BranchID).Msg("Failed to persist weather observations")
	}
	return obs, nil
}
