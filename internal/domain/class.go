package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownClass = errors.New("unknown sensor class")

// SensorClass identifies one kind of measurement. The string value is the
// sensor name the collector stores in the timeseries metadata.
type SensorClass string

const (
	ClassGas          SensorClass = "SCD41"
	ClassHumidityTemp SensorClass = "HTU2X"
	ClassLight        SensorClass = "TSL2591"
	ClassMotion       SensorClass = "HCSRC5031"
	ClassCamera       SensorClass = "RPICAM"
	ClassMicrophone   SensorClass = "RPIMIC"
)

// AllClasses lists every managed class in scheduling order.
var AllClasses = []SensorClass{
	ClassGas,
	ClassHumidityTemp,
	ClassLight,
	ClassCamera,
	ClassMicrophone,
	ClassMotion,
}

// Resource names the physical resource a class is read through.
type Resource string

const (
	ResourceSharedBus  Resource = "i2c"
	ResourceCamera     Resource = "camera"
	ResourceMicrophone Resource = "microphone"
	ResourceMotion     Resource = "motion"
)

func (c SensorClass) String() string {
	return string(c)
}

// Resource returns the shared resource the class needs exclusive access to.
func (c SensorClass) Resource() Resource {
	switch c {
	case ClassGas, ClassHumidityTemp, ClassLight:
		return ResourceSharedBus
	case ClassCamera:
		return ResourceCamera
	case ClassMicrophone:
		return ResourceMicrophone
	case ClassMotion:
		return ResourceMotion
	default:
		return ""
	}
}

// IsMedia reports whether readings of the class are binary blobs uploaded in two phases.
func (c SensorClass) IsMedia() bool {
	return c == ClassCamera || c == ClassMicrophone
}

func (c SensorClass) Valid() bool {
	return c.Resource() != ""
}

// ParseClass maps a sensor name (case-insensitive) to its class.
func ParseClass(name string) (SensorClass, error) {
	c := SensorClass(strings.ToUpper(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return c, nil
}

// ParseClassList parses a comma separated list of sensor names, skipping blanks.
func ParseClassList(s string) ([]SensorClass, error) {
	var out []SensorClass
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseClass(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
