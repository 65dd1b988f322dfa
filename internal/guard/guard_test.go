package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// TestGuard_MutualExclusion verifies that concurrent operations on one guard
// never overlap.
func TestGuard_MutualExclusion(t *testing.T) {
	g := New("i2c")

	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), time.Second, func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent operations = %d, want 1", maxActive)
	}
	if g.Held() {
		t.Error("guard should be free after all operations")
	}
}

// TestGuard_ExecutionWindowsDoNotOverlap records start/end of each operation
// and checks the windows are disjoint.
func TestGuard_ExecutionWindowsDoNotOverlap(t *testing.T) {
	g := New("camera")

	type window struct{ start, end time.Time }
	var mu sync.Mutex
	var windows []window
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), 0, func(ctx context.Context) error {
				w := window{start: time.Now()}
				time.Sleep(3 * time.Millisecond)
				w.end = time.Now()
				mu.Lock()
				windows = append(windows, w)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	for i := range windows {
		for j := range windows {
			if i == j {
				continue
			}
			a, b := windows[i], windows[j]
			if a.start.Before(b.end) && b.start.Before(a.end) {
				t.Fatalf("windows %d and %d overlap: %v-%v / %v-%v", i, j, a.start, a.end, b.start, b.end)
			}
		}
	}
}

func TestGuard_ReleasedOnError(t *testing.T) {
	g := New("i2c")
	wantErr := errors.New("bus error")

	err := g.Do(context.Background(), time.Second, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected bus error, got %v", err)
	}
	if g.Held() {
		t.Fatal("guard leaked after error")
	}

	if err := g.Do(context.Background(), time.Second, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("second operation failed: %v", err)
	}
}

func TestGuard_ReleasedOnPanic(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		g := New("motion")

		err := g.Do(context.Background(), timeout, func(ctx context.Context) error {
			panic("wedged driver")
		})
		if err == nil {
			t.Fatalf("timeout=%s: expected error from panicking operation", timeout)
		}
		if g.Held() {
			t.Fatalf("timeout=%s: guard leaked after panic", timeout)
		}
	}
}

// TestGuard_TimeoutReleasesGuard verifies that a wedged operation does not
// starve later operations on the same resource.
func TestGuard_TimeoutReleasesGuard(t *testing.T) {
	g := New("microphone")
	unblock := make(chan struct{})
	defer close(unblock)

	err := g.Do(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-unblock
		return nil
	})
	if !errors.Is(err, ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}

	ran := false
	err = g.Do(context.Background(), time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("operation after timeout did not run: ran=%v err=%v", ran, err)
	}
}

func TestGuard_OperationSeesDeadline(t *testing.T) {
	g := New("i2c")

	err := g.Do(context.Background(), time.Second, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline on operation context")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGuard_AcquireCancelled(t *testing.T) {
	g := New("camera")
	hold := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = g.Do(context.Background(), 0, func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Do(ctx, 0, func(ctx context.Context) error {
		t.Error("operation must not run without the guard")
		return nil
	})
	if !errors.Is(err, ErrAcquire) {
		t.Fatalf("expected ErrAcquire, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}

	close(hold)
}

type mockMetrics struct {
	mu       sync.Mutex
	waits    int
	holds    int
	timeouts int
}

func (m *mockMetrics) GuardWait(resource string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
}

func (m *mockMetrics) GuardHold(resource string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holds++
}

func (m *mockMetrics) GuardTimeout(resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func TestGuard_Metrics(t *testing.T) {
	m := &mockMetrics{}
	g := New("i2c").WithMetrics(m)

	_ = g.Do(context.Background(), time.Second, func(ctx context.Context) error { return nil })
	_ = g.Do(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return ctx.Err()
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waits != 2 || m.holds != 2 {
		t.Errorf("waits=%d holds=%d, want 2/2", m.waits, m.holds)
	}
	if m.timeouts != 1 {
		t.Errorf("timeouts=%d, want 1", m.timeouts)
	}
}

func TestSet_For(t *testing.T) {
	s := NewSet()

	if s.For(domain.ClassGas) != s.For(domain.ClassLight) {
		t.Error("gas and light sensors must share the bus guard")
	}
	if s.For(domain.ClassGas) != s.For(domain.ClassHumidityTemp) {
		t.Error("gas and humidity sensors must share the bus guard")
	}
	if s.For(domain.ClassCamera) == s.For(domain.ClassMicrophone) {
		t.Error("camera and microphone must have separate guards")
	}
	if s.For(domain.ClassMotion).Name() != "motion" {
		t.Errorf("motion guard name = %q", s.For(domain.ClassMotion).Name())
	}
	if s.For(domain.SensorClass("X")) != nil {
		t.Error("unknown class should have no guard")
	}
	if len(s.Held()) != 4 {
		t.Errorf("expected 4 guards, got %d", len(s.Held()))
	}
}
