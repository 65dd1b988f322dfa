package domain

import "time"

// AnalyticsConfig controls how reading counters are bucketed.
type AnalyticsConfig struct {
	Window    time.Duration // 1m, 5m, 1h
	Retention time.Duration // TTL, must be >= Window
}

// DefaultAnalyticsConfig keeps one day of per-minute counters.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		Window:    time.Minute,
		Retention: 24 * time.Hour,
	}
}
