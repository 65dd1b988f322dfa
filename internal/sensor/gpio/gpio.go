// Package gpio reads the PIR motion sensor through the sysfs GPIO interface.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

// DefaultValuePath is the value file of BCM pin 4 once exported.
const DefaultValuePath = "/sys/class/gpio/gpio4/value"

// Motion samples the input level of the motion sensor's output pin.
type Motion struct {
	path string
}

func NewMotion(path string) *Motion {
	if path == "" {
		path = DefaultValuePath
	}
	return &Motion{path: path}
}

func (m *Motion) Read(ctx context.Context) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, sensor.Wrap(domain.ClassMotion, err)
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, sensor.NewError(domain.ClassMotion, sensor.KindBus, fmt.Errorf("read %s: %w", m.path, err))
	}
	switch strings.TrimSpace(string(raw)) {
	case "1":
		return domain.MotionReading{Motion: true}, nil
	case "0":
		return domain.MotionReading{Motion: false}, nil
	default:
		return nil, sensor.NewError(domain.ClassMotion, sensor.KindDevice, errors.New("unexpected gpio value "+strings.TrimSpace(string(raw))))
	}
}
