// Package sensor holds the adapter contract shared by the sensor drivers
// and the typed error they report.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// Adapter performs one measurement. Implementations must honour ctx
// cancellation where the underlying device allows it.
type Adapter interface {
	Read(ctx context.Context) (domain.Reading, error)
}

type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindBus     ErrorKind = "bus"
	KindDevice  ErrorKind = "device"
)

// Error is a failed measurement.
type Error struct {
	Class domain.SensorClass
	Kind  ErrorKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sensor %s: %s: %v", e.Class, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(class domain.SensorClass, kind ErrorKind, err error) *Error {
	return &Error{Class: class, Kind: kind, Err: err}
}

// Wrap turns err into an *Error for class. Context deadlines become
// timeouts and anything unrecognised is a device error. Existing *Error
// values pass through unchanged.
func Wrap(class domain.SensorClass, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(class, KindTimeout, err)
	}
	return NewError(class, KindDevice, err)
}

// Func adapts a plain function to Adapter.
type Func func(ctx context.Context) (domain.Reading, error)

func (f Func) Read(ctx context.Context) (domain.Reading, error) {
	return f(ctx)
}
