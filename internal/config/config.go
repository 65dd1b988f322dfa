package config

import (
	"encoding/json"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// Sensor modes.
const (
	SensorModeFake     = "fake"
	SensorModeHardware = "hardware"
)

// Config holds all configuration for the roomsense client.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DeviceName      string `json:"device_name"`
	APIEndpoint     string `json:"api_endpoint"`
	UserSetLocation string `json:"user_set_location,omitempty"`

	// SensorsListStr is the raw SENSORS_LIST; Sensors is its parsed form.
	SensorsListStr string               `json:"sensors_list"`
	Sensors        []domain.SensorClass `json:"-"`
	SensorMode     string               `json:"sensor_mode"`

	// Policies is the default trigger table with TRIGGER_* overrides applied.
	Policies         map[domain.SensorClass]domain.Policy `json:"-"`
	TriggerOverrides map[string]string                    `json:"trigger_overrides,omitempty"`

	SchedulerExcludeStr  string               `json:"scheduler_exclude"`
	SchedulerExclude     []domain.SensorClass `json:"-"`
	MotionTriggersCamera bool                 `json:"motion_triggers_camera"`

	EventBusBufferSize     int           `json:"eventbus_buffer_size"`
	EventBusEmitTimeout    time.Duration `json:"-"`
	EventBusEmitTimeoutStr string        `json:"eventbus_emit_timeout"`

	DispatcherPollTimeout     time.Duration `json:"-"`
	DispatcherPollTimeoutStr  string        `json:"dispatcher_poll_timeout"`
	DispatcherWorkers         int           `json:"dispatcher_workers"`
	DispatcherDrainTimeout    time.Duration `json:"-"`
	DispatcherDrainTimeoutStr string        `json:"dispatcher_drain_timeout"`

	AdapterTimeout    time.Duration `json:"-"`
	AdapterTimeoutStr string        `json:"adapter_timeout"`
	UploadTimeout     time.Duration `json:"-"`
	UploadTimeoutStr  string        `json:"upload_timeout"`

	// RegisterTimeout bounds the startup device registration including retries.
	RegisterTimeout    time.Duration `json:"-"`
	RegisterTimeoutStr string        `json:"register_timeout"`

	MediaDir       string `json:"media_dir"`
	MediaCleanup   bool   `json:"media_cleanup"`
	CameraCommand  string `json:"camera_command,omitempty"`
	MicCommand     string `json:"mic_command,omitempty"`
	MotionGPIOPath string `json:"motion_gpio_path,omitempty"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RedisAddr    string `json:"redis_addr,omitempty"`
	MQTTBroker   string `json:"mqtt_broker,omitempty"`
	MQTTClientID string `json:"mqtt_client_id,omitempty"`

	LogDebug bool `json:"log_debug"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DeviceName:                os.Getenv("DEVICE_NAME"),
		APIEndpoint:               strings.TrimRight(os.Getenv("API_ENDPOINT"), "/"),
		UserSetLocation:           os.Getenv("USER_SET_LOCATION"),
		SensorsListStr:            os.Getenv("SENSORS_LIST"),
		SensorMode:                strings.ToLower(os.Getenv("SENSOR_MODE")),
		SchedulerExcludeStr:       os.Getenv("SCHEDULER_EXCLUDE"),
		MotionTriggersCamera:      os.Getenv("MOTION_TRIGGERS_CAMERA") != "false",
		EventBusEmitTimeoutStr:    os.Getenv("EVENTBUS_EMIT_TIMEOUT"),
		DispatcherPollTimeoutStr:  os.Getenv("DISPATCHER_POLL_TIMEOUT"),
		DispatcherDrainTimeoutStr: os.Getenv("DISPATCHER_DRAIN_TIMEOUT"),
		AdapterTimeoutStr:         os.Getenv("ADAPTER_TIMEOUT"),
		UploadTimeoutStr:          os.Getenv("UPLOAD_TIMEOUT"),
		RegisterTimeoutStr:        os.Getenv("REGISTER_TIMEOUT"),
		MediaDir:                  os.Getenv("MEDIA_DIR"),
		MediaCleanup:              os.Getenv("MEDIA_CLEANUP") != "false",
		CameraCommand:             os.Getenv("CAMERA_COMMAND"),
		MicCommand:                os.Getenv("MIC_COMMAND"),
		MotionGPIOPath:            os.Getenv("MOTION_GPIO_PATH"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		HTTPAddr:                  os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr:    os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:               os.Getenv("METRICS_PATH"),
		MetricsPort:               os.Getenv("METRICS_PORT"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		MQTTBroker:                os.Getenv("MQTT_BROKER"),
		MQTTClientID:              os.Getenv("MQTT_CLIENT_ID"),
		LogDebug:                  os.Getenv("LOG_DEBUG") == "true",
	}

	if cfg.SensorMode == "" {
		cfg.SensorMode = SensorModeFake
	}
	if cfg.SensorsListStr == "" {
		names := make([]string, len(domain.AllClasses))
		for i, c := range domain.AllClasses {
			names[i] = string(c)
		}
		cfg.SensorsListStr = strings.Join(names, ",")
	}
	// Parse errors are reported by Validate().
	if classes, err := domain.ParseClassList(cfg.SensorsListStr); err == nil {
		cfg.Sensors = classes
	}
	if classes, err := domain.ParseClassList(cfg.SchedulerExcludeStr); err == nil {
		cfg.SchedulerExclude = classes
	}

	cfg.EventBusBufferSize = positiveIntEnv("EVENTBUS_BUFFER_SIZE", 100)
	cfg.DispatcherWorkers = positiveIntEnv("DISPATCHER_WORKERS", 16)

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	if cfg.MediaDir == "" {
		cfg.MediaDir = filepath.Join(os.TempDir(), "roomsense")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.MQTTClientID == "" && cfg.DeviceName != "" {
		cfg.MQTTClientID = "roomsense-" + cfg.DeviceName
	}

	defaultStr(&cfg.EventBusEmitTimeoutStr, "1s")
	defaultStr(&cfg.DispatcherPollTimeoutStr, "1s")
	defaultStr(&cfg.DispatcherDrainTimeoutStr, "30s")
	defaultStr(&cfg.AdapterTimeoutStr, "10s")
	defaultStr(&cfg.UploadTimeoutStr, "30s")
	defaultStr(&cfg.RegisterTimeoutStr, "2m")
	defaultStr(&cfg.CircuitBreakerCooldownStr, "1m")
	defaultStr(&cfg.HTTPShutdownTimeoutStr, "10s")

	// Parse durations; validation is handled separately by Validate().
	parseDuration(cfg.EventBusEmitTimeoutStr, &cfg.EventBusEmitTimeout)
	parseDuration(cfg.DispatcherPollTimeoutStr, &cfg.DispatcherPollTimeout)
	parseDuration(cfg.DispatcherDrainTimeoutStr, &cfg.DispatcherDrainTimeout)
	parseDuration(cfg.AdapterTimeoutStr, &cfg.AdapterTimeout)
	parseDuration(cfg.UploadTimeoutStr, &cfg.UploadTimeout)
	parseDuration(cfg.RegisterTimeoutStr, &cfg.RegisterTimeout)
	parseDuration(cfg.CircuitBreakerCooldownStr, &cfg.CircuitBreakerCooldown)
	parseDuration(cfg.HTTPShutdownTimeoutStr, &cfg.HTTPShutdownTimeout)

	cfg.Policies, cfg.TriggerOverrides = loadPolicies()

	return cfg
}

// loadPolicies applies TRIGGER_<SENSOR>_INTERVAL, _EXPIRATION and _CRON to
// the default trigger table. Raw override values are returned for Validate.
func loadPolicies() (map[domain.SensorClass]domain.Policy, map[string]string) {
	policies := domain.DefaultPolicies()
	overrides := make(map[string]string)

	for _, class := range domain.AllClasses {
		p := policies[class]
		prefix := "TRIGGER_" + string(class) + "_"

		if s := os.Getenv(prefix + "INTERVAL"); s != "" {
			overrides[prefix+"INTERVAL"] = s
			parseDuration(s, &p.Interval)
		}
		if s := os.Getenv(prefix + "EXPIRATION"); s != "" {
			overrides[prefix+"EXPIRATION"] = s
			parseDuration(s, &p.Expiration)
		}
		if s := os.Getenv(prefix + "CRON"); s != "" {
			overrides[prefix+"CRON"] = s
			p.Cron = s
		}
		policies[class] = p
	}
	return policies, overrides
}

func defaultStr(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func parseDuration(s string, dst *time.Duration) {
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

func positiveIntEnv(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if n, err := parseInt(s); err == nil && n > 0 {
		return n
	}
	log.Printf("config: invalid %s %q (must be a positive integer), using default %d", key, s, def)
	return def
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.APIEndpoint = maskURL(c.APIEndpoint)
	masked.RedisAddr = maskURL(c.RedisAddr)
	masked.MQTTBroker = maskURL(c.MQTTBroker)
	return json.MarshalIndent(masked, "", "  ")
}

// maskURL hides any userinfo embedded in an address.
func maskURL(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	u.User = url.User("***")
	return u.String()
}

// OverrideKeys returns the TRIGGER_* variables that were set, sorted.
func (c Config) OverrideKeys() []string {
	keys := make([]string, 0, len(c.TriggerOverrides))
	for k := range c.TriggerOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
