package main

import (
	"log"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/config"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// logConfigWarnings logs operator-facing warnings about risky settings.
func logConfigWarnings(cfg *config.Config) {
	if cfg.SensorMode == config.SensorModeFake {
		log.Println("roomsense: WARNING [P0]: SENSOR_MODE=fake; readings are simulated and media is synthesised. Set SENSOR_MODE=hardware on a device.")
	}

	if !cfg.MetricsEnabled {
		log.Println("roomsense: WARNING [P1]: METRICS_ENABLED=false; stale drops, handler failures and upload errors are only visible in logs.")
	}

	if !cfg.MediaCleanup && (enabled(cfg, domain.ClassCamera) || enabled(cfg, domain.ClassMicrophone)) {
		log.Printf("roomsense: WARNING [P1]: MEDIA_CLEANUP=false; captured files accumulate in %s.", cfg.MediaDir)
	}

	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("roomsense: INFO: CIRCUIT_BREAKER_THRESHOLD=0; upload circuit breaker disabled.")
	}

	if cfg.MotionTriggersCamera && enabled(cfg, domain.ClassMotion) && enabled(cfg, domain.ClassCamera) {
		log.Println("roomsense: INFO: MOTION_TRIGGERS_CAMERA=true; RPICAM is captured on motion instead of on a timer.")
	}

	if cfg.DispatcherWorkers == 1 {
		log.Println("roomsense: INFO: DISPATCHER_WORKERS=1; events are handled one at a time and a slow capture delays every other sensor.")
	}
}
