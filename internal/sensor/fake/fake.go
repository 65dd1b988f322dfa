// Package fake simulates the scalar sensors of a room for development
// hosts without the hardware attached.
package fake

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

// DefaultLatency approximates one bus transaction.
const DefaultLatency = 2 * time.Millisecond

// Room is a random walk over the quantities the scalar sensors observe.
// All adapters built from one Room see the same environment.
type Room struct {
	mu          sync.Mutex
	rng         *rand.Rand
	latency     time.Duration
	co2         float64
	humidity    float64
	temperature float64
	lux         float64
	motion      bool
}

func NewRoom(seed uint64) *Room {
	return &Room{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		latency:     DefaultLatency,
		co2:         600,
		humidity:    50,
		temperature: 24,
		lux:         300,
	}
}

// WithLatency sets the simulated read time.
func (r *Room) WithLatency(d time.Duration) *Room {
	r.latency = d
	return r
}

// Adapter returns the simulated sensor for class.
func (r *Room) Adapter(class domain.SensorClass) (sensor.Adapter, error) {
	switch class {
	case domain.ClassGas, domain.ClassHumidityTemp, domain.ClassLight, domain.ClassMotion:
		return sensor.Func(func(ctx context.Context) (domain.Reading, error) {
			return r.read(ctx, class)
		}), nil
	default:
		return nil, fmt.Errorf("fake: %w: %s", domain.ErrUnknownClass, class)
	}
}

func (r *Room) read(ctx context.Context, class domain.SensorClass) (domain.Reading, error) {
	if r.latency > 0 {
		t := time.NewTimer(r.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, sensor.Wrap(class, ctx.Err())
		case <-t.C:
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.step()

	switch class {
	case domain.ClassGas:
		return domain.GasReading{CO2: r.co2, Humidity: r.humidity, Temperature: r.temperature}, nil
	case domain.ClassHumidityTemp:
		return domain.HumidityTemperatureReading{Humidity: r.humidity, Temperature: r.temperature}, nil
	case domain.ClassLight:
		return domain.LightReading{Lux: r.lux}, nil
	default:
		return domain.MotionReading{Motion: r.motion}, nil
	}
}

// step advances the walk one sample.
func (r *Room) step() {
	r.co2 = walk(r.rng, r.co2, 15, 400, 2000)
	r.humidity = walk(r.rng, r.humidity, 0.5, 20, 80)
	r.temperature = walk(r.rng, r.temperature, 0.1, 16, 32)
	r.lux = walk(r.rng, r.lux, 20, 0, 1200)
	if r.rng.Float64() < 0.1 {
		r.motion = !r.motion
	}
}

func walk(rng *rand.Rand, v, maxStep, lo, hi float64) float64 {
	v += (rng.Float64()*2 - 1) * maxStep
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
