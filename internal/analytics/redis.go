package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// RedisSink counts uploaded readings per device, sensor and time window.
type RedisSink struct {
	client *redis.Client
	device string
	config domain.AnalyticsConfig
}

func NewRedisSink(client *redis.Client, device string, config domain.AnalyticsConfig) *RedisSink {
	return &RedisSink{client: client, device: device, config: config}
}

// Record is the best-effort form of Write. Failures are logged and dropped.
func (s *RedisSink) Record(ctx context.Context, class domain.SensorClass, readAt time.Time) {
	if err := s.Write(ctx, class, readAt); err != nil {
		log.Printf("analytics: sensor=%s error: %v", class, err)
	}
}

func (s *RedisSink) Write(ctx context.Context, class domain.SensorClass, readAt time.Time) error {
	key := buildKey(s.device, string(class), readAt, s.config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Count returns the counter of the window containing t.
func (s *RedisSink) Count(ctx context.Context, class domain.SensorClass, t time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(s.device, string(class), t, s.config.Window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(device, sensor string, t time.Time, window time.Duration) string {
	bucket := truncateToBucket(t, window)
	return fmt.Sprintf("d:%s:s:%s:readings:%s", device, sensor, bucket)
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
