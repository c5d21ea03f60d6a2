package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// AlertSink hands risk alerts to the notification collaborator
type AlertSink interface {
	Publish(ctx context.Context, alert models.RiskAlert) error
}

// streamAdder is the slice of the redis client the sink needs
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisAlertSink appends alerts to a Redis stream
type RedisAlertSink struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisAlertSink creates a sink writing to stream, trimmed to roughly maxLen entries
func NewRedisAlertSink(client *redis.Client, stream string, maxLen int64) *RedisAlertSink {
	return &RedisAlertSink{client: client, stream: stream, maxLen: maxLen}
}

// Publish adds one alert to the stream
func (s *RedisAlertSink) Publish(ctx context.Context, alert models.RiskAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling risk alert: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":     string(data),
			"user_id":  alert.UserID,
			"kind":     string(alert.Kind),
			"severity": string(alert.Severity),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// MemoryAlertSink keeps published alerts in memory
type MemoryAlertSink struct {
	mu     sync.Mutex
	alerts []models.RiskAlert
}

// Publish records the alert
func (s *MemoryAlertSink) Publish(_ context.Context, alert models.RiskAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns a copy of everything published so far
func (s *MemoryAlertSink) Alerts() []models.RiskAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RiskAlert(nil), s.alerts...)
}
