package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// Loaded GetOrSet 결과
type Loaded[T any] struct {
	Value T
	Hit   bool
	// SetErr 캐시 저장 실패 (Value 는 유효)
	SetErr error
}

// GetOrSet returns the cached value of key, or calls load and caches its result.
// 캐시 읽기 실패는 miss 로 취급. keep 이 false 인 값은 저장하지 않음. c 는 nil 가능.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func() (T, error), keep func(T) bool) (Loaded[T], error) {
	var res Loaded[T]
	if c != nil {
		if found, err := c.Get(ctx, key, &res.Value); err == nil && found {
			res.Hit = true
			return res, nil
		}
	}

	v, err := load()
	if err != nil {
		return Loaded[T]{}, err
	}
	res = Loaded[T]{Value: v}
	if c != nil && (keep == nil || keep(v)) {
		res.SetErr = c.Set(ctx, key, v, ttl)
	}
	return res, nil
}

// Predefined TTLs
const (
	TTLShort = 10 * time.Minute // 예보 (당일 갱신)
	TTLDaily = 24 * time.Hour   // 아카이브 관측
)

// WeatherKey 지점 좌표 + 기간 단위 날씨 캐시 키
func WeatherKey(lat, lon float64, from, to string) string {
	return fmt.Sprintf("weather:%.4f:%.4f:%s:%s", lat, lon, from, to)
}

// ForecastsPublishedChannel 예측 발행 알림 채널
const ForecastsPublishedChannel = "fleetcast:forecasts:published"
