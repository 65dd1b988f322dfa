package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/analytics"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/api"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/circuitbreaker"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/config"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/dispatcher"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/guard"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/metrics"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/mirror"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/scheduler"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/transport/channel"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/upload"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`roomsense - room sensor data acquisition client

Usage:
  roomsense <command>

Commands:
  serve      Register the device and start sampling
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DEVICE_NAME               Device identifier sent with every reading (required)
  API_ENDPOINT              Collector API base URL (required)
  USER_SET_LOCATION         Free-form location sent at registration (optional)
  SENSORS_LIST              Enabled sensors (default: all of SCD41,HTU2X,TSL2591,HCSRC5031,RPICAM,RPIMIC)
  SENSOR_MODE               "fake" or "hardware" (default: "fake")
  HTTP_ADDR                 Status server address (default: ":8080")

  TRIGGER_<SENSOR>_INTERVAL    Trigger interval override, e.g. TRIGGER_SCD41_INTERVAL=10s
  TRIGGER_<SENSOR>_EXPIRATION  Event expiration horizon override
  TRIGGER_<SENSOR>_CRON        Cron cadence instead of a fixed interval
  SCHEDULER_EXCLUDE         Sensors never triggered by the timer (optional)
  MOTION_TRIGGERS_CAMERA    Capture RPICAM on motion instead of a timer (default: "true")

  EVENTBUS_BUFFER_SIZE      Event queue capacity (default: "100")
  EVENTBUS_EMIT_TIMEOUT     Longest an emit waits for queue space (default: "1s")
  DISPATCHER_POLL_TIMEOUT   Idle heartbeat interval (default: "1s")
  DISPATCHER_WORKERS        Max concurrently running handlers (default: "16")
  DISPATCHER_DRAIN_TIMEOUT  Dispatcher event drain timeout (default: "30s")
  ADAPTER_TIMEOUT           Max duration of one sensor read (default: "10s")
  UPLOAD_TIMEOUT            Max duration of one API request (default: "30s")
  REGISTER_TIMEOUT          Device registration retry budget (default: "2m")

  MEDIA_DIR                 Directory for captured files (default: $TMPDIR/roomsense)
  MEDIA_CLEANUP             Delete files after upload (default: "true")
  CAMERA_COMMAND            Capture command with {path} placeholder (hardware default: libcamera-still)
  MIC_COMMAND               Record command with {path} placeholder (hardware default: arecord)
  MOTION_GPIO_PATH          Sysfs value file of the PIR pin (default: "/sys/class/gpio/gpio4/value")

  CIRCUIT_BREAKER_THRESHOLD Consecutive upload failures before failing fast, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Time an open circuit stays open (default: "1m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  REDIS_ADDR                Redis address or URL for reading counters (optional)
  MQTT_BROKER               MQTT broker URL for the local mirror (optional)
  MQTT_CLIENT_ID            MQTT client id (default: "roomsense-<DEVICE_NAME>")
  LOG_DEBUG                 Log stale drops and idle heartbeats (default: "false")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapters, err := buildAdapters(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up sensors: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("roomsense: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("roomsense: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("roomsense: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("roomsense: METRICS_ENABLED not set; metrics disabled")
	}

	var breaker *circuitbreaker.CircuitBreaker
	uploader := upload.New(cfg.APIEndpoint, cfg.DeviceName, cfg.UploadTimeout)
	if cfg.CircuitBreakerThreshold > 0 {
		breaker = circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		uploader = uploader.WithCircuitBreaker(breaker)
	}
	if metricsSink != nil {
		uploader = uploader.WithMetrics(metricsSink)
	}

	// Registration happens once, before any trigger is scheduled.
	registerCtx, cancelRegister := context.WithTimeout(rootCtx, cfg.RegisterTimeout)
	err = uploader.RegisterDevice(registerCtx, upload.NewDeviceInfo(cfg.DeviceName, cfg.UserSetLocation, cfg.Sensors), cfg.RegisterTimeout)
	cancelRegister()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to register device: %v\n", err)
		return exitRuntimeError
	}

	// Create event bus with optional metrics
	busOpts := []channel.Option{channel.WithEmitTimeout(cfg.EventBusEmitTimeout)}
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	guards := guard.NewSet()
	if metricsSink != nil {
		guards = guards.WithMetrics(metricsSink)
	}

	sched, err := scheduler.New(scheduler.Config{
		Policies: cfg.Policies,
		Classes:  cfg.Sensors,
		Exclude:  schedulerExclusions(&cfg),
	}, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	disp := dispatcher.New(dispatcher.Config{
		PollTimeout:          cfg.DispatcherPollTimeout,
		DrainTimeout:         cfg.DispatcherDrainTimeout,
		Workers:              int64(cfg.DispatcherWorkers),
		AdapterTimeout:       cfg.AdapterTimeout,
		Policies:             cfg.Policies,
		MotionTriggersCamera: cfg.MotionTriggersCamera,
		MediaCleanup:         cfg.MediaCleanup,
		Debug:                cfg.LogDebug,
	}, bus, adapters, guards, uploader)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	apiHandler := api.NewHandler(cfg.DeviceName, sched, disp, guards, bus)
	if breaker != nil {
		apiHandler = apiHandler.WithBreakers(breaker)
	}

	// Wire analytics if Redis is configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = newRedisClient(cfg.RedisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: REDIS_ADDR: %v\n", err)
			return exitInvalidConfig
		}
		defer redisClient.Close()
		sink := analytics.NewRedisSink(redisClient, cfg.DeviceName, domain.DefaultAnalyticsConfig())
		disp = disp.WithAnalytics(sink)
		apiHandler = apiHandler.WithReadingCounts(sink, cfg.Sensors)
		apiHandler = apiHandler.WithHealthChecker("redis", api.HealthCheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
		log.Printf("roomsense: analytics enabled (redis=%s)", redisClient.Options().Addr)
	} else {
		log.Println("roomsense: REDIS_ADDR not set; analytics disabled")
	}

	// Wire the local MQTT mirror if a broker is configured. Best effort.
	if cfg.MQTTBroker != "" {
		pub, err := mirror.Connect(rootCtx, cfg.MQTTBroker, cfg.MQTTClientID, cfg.DeviceName)
		if err != nil {
			log.Printf("roomsense: mirror disabled: %v", err)
		} else {
			defer pub.Close()
			disp = disp.WithMirror(pub)
			apiHandler = apiHandler.WithHealthChecker("mqtt", pub)
		}
	} else {
		log.Println("roomsense: MQTT_BROKER not set; mirror disabled")
	}

	// Start HTTP server with API handler
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("roomsense: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("roomsense: http server error: %v", err)
		}
	}()

	// Use separate contexts for scheduler and dispatcher to enable ordered shutdown.
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())

	var schedulerWg sync.WaitGroup
	var dispatcherWg sync.WaitGroup
	schedulerErr := make(chan error, 1)

	schedulerWg.Add(1)
	go func() {
		defer schedulerWg.Done()
		if err := sched.Run(schedulerCtx); err != nil && !errors.Is(err, context.Canceled) {
			schedulerErr <- err
		}
	}()

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx, bus.Channel())
	}()

	log.Printf("roomsense: started (device=%s, sensors=%v, mode=%s, http=%s)",
		cfg.DeviceName, cfg.Sensors, cfg.SensorMode, cfg.HTTPAddr)

	exitCode := exitSuccess
	select {
	case <-rootCtx.Done():
		log.Println("roomsense: received signal, shutting down")
	case err := <-schedulerErr:
		log.Printf("roomsense: scheduler failed: %v", err)
		if errors.Is(err, scheduler.ErrNotAttached) {
			exitCode = exitInvalidConfig
		} else {
			exitCode = exitRuntimeError
		}
	}

	// Phase 1: Stop scheduler (no new triggers emitted)
	log.Println("roomsense: stopping scheduler...")
	cancelScheduler()
	schedulerWg.Wait()
	log.Println("roomsense: scheduler stopped")

	// Phase 2: Stop dispatcher (will drain buffered events before returning)
	log.Println("roomsense: stopping dispatcher (draining events)...")
	cancelDispatcher()
	dispatcherWg.Wait()
	stats := disp.Stats()
	log.Printf("roomsense: dispatcher stopped (dispatched=%d, succeeded=%d, failed=%d, stale=%d)",
		stats.Dispatched, stats.Succeeded, stats.Failed, stats.Stale)

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("roomsense: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("roomsense: http server shutdown error: %v", err)
	}
	log.Println("roomsense: http server stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("roomsense: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("roomsense: metrics server shutdown error: %v", err)
		}
		log.Println("roomsense: metrics server stopped")
	}

	log.Println("roomsense: stopped")
	return exitCode
}

// newRedisClient accepts either a bare host:port or a redis:// URL.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("roomsense version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
