// Package guard serializes access to shared physical resources.
//
// A Guard admits one operation at a time. Do is the only way to hold a
// guard, so a caller can never hold two guards at once unless it nests Do
// calls; the dispatcher never does.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrAcquire is returned when the context ends before the guard is free.
	ErrAcquire = errors.New("guard acquire aborted")

	// ErrOperationTimeout is returned when the guarded operation outlives its
	// timeout. The guard is released regardless of whether the operation
	// eventually returns.
	ErrOperationTimeout = errors.New("guarded operation timed out")
)

// MetricsSink receives guard timings. Implementations must not block.
type MetricsSink interface {
	GuardWait(resource string, d time.Duration)
	GuardHold(resource string, d time.Duration)
	GuardTimeout(resource string)
}

type Guard struct {
	name    string
	slot    chan struct{}
	held    atomic.Bool
	metrics MetricsSink // optional, nil = disabled
}

func New(name string) *Guard {
	return &Guard{
		name: name,
		slot: make(chan struct{}, 1),
	}
}

// WithMetrics attaches a metrics sink to the guard.
func (g *Guard) WithMetrics(sink MetricsSink) *Guard {
	g.metrics = sink
	return g
}

func (g *Guard) Name() string {
	return g.name
}

// Held reports whether an operation currently owns the guard.
func (g *Guard) Held() bool {
	return g.held.Load()
}

// Do waits for the guard, runs op exclusively and releases the guard on every
// exit path, including a panic inside op. With timeout > 0, op gets a context
// carrying that deadline and the guard is released once it passes.
func (g *Guard) Do(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	waitStart := time.Now()
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrAcquire, g.name, ctx.Err())
	}
	g.held.Store(true)
	acquiredAt := time.Now()
	if g.metrics != nil {
		g.metrics.GuardWait(g.name, acquiredAt.Sub(waitStart))
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.held.Store(false)
			if g.metrics != nil {
				g.metrics.GuardHold(g.name, time.Since(acquiredAt))
			}
			<-g.slot
		})
	}

	if timeout <= 0 {
		defer release()
		return run(ctx, op)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(opCtx, op)
	}()

	select {
	case err := <-done:
		release()
		return err
	case <-opCtx.Done():
		// op may have finished at the same instant
		select {
		case err := <-done:
			release()
			return err
		default:
		}
		release()
		if ctx.Err() != nil {
			return fmt.Errorf("guard %s: %w", g.name, ctx.Err())
		}
		if g.metrics != nil {
			g.metrics.GuardTimeout(g.name)
		}
		return fmt.Errorf("%w: %s after %s", ErrOperationTimeout, g.name, timeout)
	}
}

// run calls op, turning a panic into an error.
func run(ctx context.Context, op func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guarded operation panicked: %v", r)
		}
	}()
	return op(ctx)
}
