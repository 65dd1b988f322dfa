package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/cron"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if cfg.DeviceName == "" {
		add("DEVICE_NAME", "required")
	}

	if cfg.APIEndpoint == "" {
		add("API_ENDPOINT", "required")
	} else if u, err := url.Parse(cfg.APIEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("API_ENDPOINT", fmt.Sprintf("must be an http(s) URL, got %q", maskURL(cfg.APIEndpoint)))
	}

	if _, err := domain.ParseClassList(cfg.SensorsListStr); err != nil {
		add("SENSORS_LIST", err.Error())
	} else if len(cfg.Sensors) == 0 {
		add("SENSORS_LIST", "must name at least one sensor")
	}
	if _, err := domain.ParseClassList(cfg.SchedulerExcludeStr); err != nil {
		add("SCHEDULER_EXCLUDE", err.Error())
	}

	if cfg.SensorMode != SensorModeFake && cfg.SensorMode != SensorModeHardware {
		add("SENSOR_MODE", fmt.Sprintf("must be 'fake' or 'hardware', got %q", cfg.SensorMode))
	}

	checkDuration := func(field, s string) {
		d, err := time.ParseDuration(s)
		if err != nil {
			add(field, fmt.Sprintf("invalid duration: %v", err))
		} else if d <= 0 {
			add(field, "must be positive")
		}
	}
	checkDuration("EVENTBUS_EMIT_TIMEOUT", cfg.EventBusEmitTimeoutStr)
	checkDuration("DISPATCHER_POLL_TIMEOUT", cfg.DispatcherPollTimeoutStr)
	checkDuration("DISPATCHER_DRAIN_TIMEOUT", cfg.DispatcherDrainTimeoutStr)
	checkDuration("ADAPTER_TIMEOUT", cfg.AdapterTimeoutStr)
	checkDuration("UPLOAD_TIMEOUT", cfg.UploadTimeoutStr)
	checkDuration("REGISTER_TIMEOUT", cfg.RegisterTimeoutStr)
	checkDuration("CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr)
	checkDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)

	if cfg.CircuitBreakerThreshold < 0 {
		add("CIRCUIT_BREAKER_THRESHOLD", "must be zero or positive")
	}

	for _, key := range cfg.OverrideKeys() {
		value := cfg.TriggerOverrides[key]
		if strings.HasSuffix(key, "_CRON") {
			if _, err := cron.NewParser().Parse(value, ""); err != nil {
				add(key, fmt.Sprintf("invalid cron expression: %v", err))
			}
			continue
		}
		checkDuration(key, value)
	}

	if cfg.MetricsEnabled && !strings.HasPrefix(cfg.MetricsPath, "/") {
		add("METRICS_PATH", "must start with '/'")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
