package main

import (
	"fmt"
	"log"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/config"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/dispatcher"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor/capture"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor/fake"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor/gpio"
)

// fakeLatency approximates an I2C single-shot measurement.
const fakeLatency = 50 * time.Millisecond

// buildAdapters returns one adapter per enabled class.
//
// In hardware mode the camera, microphone and motion input use the real
// devices. The I2C sensors have no in-tree driver and are served by the
// simulated room in both modes.
func buildAdapters(cfg *config.Config) (map[domain.SensorClass]dispatcher.Adapter, error) {
	room := fake.NewRoom(uint64(time.Now().UnixNano())).WithLatency(fakeLatency)
	hardware := cfg.SensorMode == config.SensorModeHardware

	adapters := make(map[domain.SensorClass]dispatcher.Adapter, len(cfg.Sensors))
	for _, class := range cfg.Sensors {
		var (
			a   dispatcher.Adapter
			err error
		)
		switch {
		case class.IsMedia():
			a, err = capture.New(class, cfg.MediaDir, captureCommand(cfg, class, hardware))
		case class == domain.ClassMotion && hardware:
			a = gpio.NewMotion(cfg.MotionGPIOPath)
		default:
			if hardware {
				log.Printf("roomsense: sensor=%s has no hardware driver, using simulated readings", class)
			}
			a, err = room.Adapter(class)
		}
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", class, err)
		}
		adapters[class] = a
	}
	return adapters, nil
}

// captureCommand picks the external capture program for a media class.
// Fake mode without an explicit command synthesises media.
func captureCommand(cfg *config.Config, class domain.SensorClass, hardware bool) string {
	cmd := cfg.CameraCommand
	def := capture.DefaultCameraCommand
	if class == domain.ClassMicrophone {
		cmd = cfg.MicCommand
		def = capture.DefaultMicCommand
	}
	if cmd == "" && hardware {
		return def
	}
	return cmd
}

// schedulerExclusions extends SCHEDULER_EXCLUDE with the camera when it is
// driven by motion instead of a timer.
func schedulerExclusions(cfg *config.Config) []domain.SensorClass {
	exclude := append([]domain.SensorClass(nil), cfg.SchedulerExclude...)
	if !cfg.MotionTriggersCamera || !enabled(cfg, domain.ClassMotion) || !enabled(cfg, domain.ClassCamera) {
		return exclude
	}
	for _, c := range exclude {
		if c == domain.ClassCamera {
			return exclude
		}
	}
	return append(exclude, domain.ClassCamera)
}

func enabled(cfg *config.Config, class domain.SensorClass) bool {
	for _, c := range cfg.Sensors {
		if c == class {
			return true
		}
	}
	return false
}
