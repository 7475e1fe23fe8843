package forecast

import (
	"context"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/redis"
)

// PublishedEvent 가격 레이어로 보내는 발행 알림
type PublishedEvent struct {
	TenantID int64  `json:"tenant_id"`
	RunDate  string `json:"run_date"`
	Rows     int    `json:"rows"`
	Champion string `json:"champion"`
	SentAt   string `json:"sent_at"`
}

// RedisNotifier publishes to redis.ForecastsPublishedChannel
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier. 비활성 client 면 no-op.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// NotifyPublished sends one JSON message per published run
func (n *RedisNotifier) NotifyPublished(ctx context.Context, tenantID int64, runDate time.Time, rows int, champion string) error {
	if !n.client.Enabled() {
		return nil
	}
	return n.client.PublishJSON(ctx, redis.ForecastsPublishedChannel, PublishedEvent{
		TenantID: tenantID,
		RunDate:  runDate.Format(contracts.DateLayout),
		Rows:     rows,
		Champion: champion,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

var _ contracts.ForecastNotifier = (*RedisNotifier)(nil)
