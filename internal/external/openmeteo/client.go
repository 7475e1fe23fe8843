package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/httputil"
	"github.com/wonny/fleetcast/pkg/logger"
	"github.com/wonny/fleetcast/pkg/metrics"
	"github.com/wonny/fleetcast/pkg/redis"
)

const (
	// MaxChunkDays archive API 요청당 최대 일수
	MaxChunkDays = 100
	// ArchiveLagDays 아카이브에 반영되기까지의 지연 (이후는 forecast API)
	ArchiveLagDays = 5

	dailyFields = "temperature_2m_mean,temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max,weather_code"
)

// Config holds client settings
type Config struct {
	ArchiveURL     string
	ForecastURL    string
	Timezone       string
	BreakerFailMax int
	CacheTTL       time.Duration
}

// Client implements contracts.WeatherSource over the Open-Meteo archive and forecast APIs
// ⭐ SSOT: 날씨 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cache      *redis.Cache
	cfg        Config
	breaker    *gobreaker.CircuitBreaker[[]contracts.WeatherObservation]
	now        func() time.Time
}

// NewClient creates a new Open-Meteo client
func NewClient(httpClient *httputil.Client, cache *redis.Cache, cfg Config, log *logger.Logger) *Client {
	if cfg.BreakerFailMax <= 0 {
		cfg.BreakerFailMax = 5
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Riyadh"
	}

	c := &Client{
		httpClient: httpClient,
		logger:     log.WithField("component", "openmeteo"),
		cache:      cache,
		cfg:        cfg,
		now:        time.Now,
	}

	failMax := uint32(cfg.BreakerFailMax)
	c.breaker = gobreaker.NewCircuitBreaker[[]contracts.WeatherObservation](gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failMax
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return c
}

// WeatherBetween fetches daily observations for loc over [from, to].
// 과거 구간은 archive, 최근 ArchiveLagDays 이후는 forecast API 사용.
func (c *Client) WeatherBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.WeatherObservation, error) {
	from, to = contracts.DateOf(from), contracts.DateOf(to)
	if to.Before(from) {
		return nil, nil
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return nil, fmt.Errorf("branch %d has no coordinates", loc.BranchID)
	}

	cutoff := contracts.DateOf(c.now()).AddDate(0, 0, -ArchiveLagDays)

	var out []contracts.WeatherObservation
	for _, ch := range Chunks(from, to, MaxChunkDays) {
		// 청크가 cutoff 를 걸치면 둘로 분할
		parts := []Chunk{ch}
		if !ch.From.After(cutoff) && ch.To.After(cutoff) {
			parts = []Chunk{{ch.From, cutoff}, {cutoff.AddDate(0, 0, 1), ch.To}}
		}
		for _, p := range parts {
			archive := !p.To.After(cutoff)
			obs, err := c.fetchCached(ctx, loc, p, archive)
			if err != nil {
				return out, err
			}
			out = append(out, obs...)
		}
	}
	return out, nil
}

// Chunk 요청 단위 날짜 구간 (양 끝 포함)
type Chunk struct {
	From, To time.Time
}

// Chunks splits [from, to] into consecutive windows of at most size days
func Chunks(from, to time.Time, size int) []Chunk {
	var out []Chunk
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, size) {
		end := cur.AddDate(0, 0, size-1)
		if end.After(to) {
			end = to
		}
		out = append(out, Chunk{From: cur, To: end})
	}
	return out
}

func (c *Client) fetchCached(ctx context.Context, loc contracts.BranchLocation, ch Chunk, archive bool) ([]contracts.WeatherObservation, error) {
	ttl := c.cfg.CacheTTL
	if !archive {
		ttl = redis.TTLShort
	}

	key := redis.WeatherKey(loc.Latitude, loc.Longitude, ch.From.Format(contracts.DateLayout), ch.To.Format(contracts.DateLayout))

	res, err := redis.GetOrSet(ctx, c.cache, key, ttl, func() ([]contracts.WeatherObservation, error) {
		obs, err := c.breaker.Execute(func() ([]contracts.WeatherObservation, error) {
			return c.fetch(ctx, loc, ch, archive)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.WeatherRequests.WithLabelValues("breaker_open").Inc()
			} else {
				metrics.WeatherRequests.WithLabelValues("error").Inc()
			}
			return nil, fmt.Errorf("open-meteo %s..%s: %w", ch.From.Format(contracts.DateLayout), ch.To.Format(contracts.DateLayout), err)
		}
		metrics.WeatherRequests.WithLabelValues("fetched").Inc()
		return obs, nil
	}, func(obs []contracts.WeatherObservation) bool { return len(obs) > 0 })
	if err != nil {
		return nil, err
	}

	if res.Hit {
		metrics.WeatherRequests.WithLabelValues("cache_hit").Inc()
	}
	if res.SetErr != nil {
		c.logger.WithError(res.SetErr).Warn("Failed to cache weather response")
	}
	return withBranch(res.Value, loc.BranchID), nil
}

func (c *Client) fetch(ctx context.Context, loc contracts.BranchLocation, ch Chunk, archive bool) ([]contracts.WeatherObservation, error) {
	base := c.cfg.ArchiveURL
	if !archive {
		base = c.cfg.ForecastURL
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	params.Set("start_date", ch.From.Format(contracts.DateLayout))
	params.Set("end_date", ch.To.Format(contracts.DateLayout))
	params.Set("daily", dailyFields)
	params.Set("timezone", c.cfg.Timezone)

	var resp DailyResponse
	if err := c.httpClient.GetJSON(ctx, base+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	obs, err := resp.Observations()
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"branch_id": loc.BranchID,
		"from":      ch.From.Format(contracts.DateLayout),
		"to":        ch.To.Format(contracts.DateLayout),
		"archive":   archive,
		"count":     len(obs),
	}).Debug("Fetched weather")
	return obs, nil
}

func withBranch(obs []contracts.WeatherObservation, branchID int64) []contracts.WeatherObservation {
	for i := range obs {
		obs[i].BranchID = branchID
	}
	return obs
}
