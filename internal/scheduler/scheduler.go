package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/cron"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// ErrNotAttached is returned by Run when no emitter has been attached.
var ErrNotAttached = errors.New("scheduler: no event emitter attached")

// maxSleep caps one timer wait so a wall clock jump is noticed eventually.
const maxSleep = time.Minute

type EventEmitter interface {
	Emit(ctx context.Context, event domain.Event) error
}

// MetricsSink defines the metrics interface for the scheduler.
// Implementations must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickCompleted(duration time.Duration, triggered int)
	TriggerEmitted(class string)
	SubmitError(kind string)
}

type Config struct {
	// Policies holds the cadence of every class. Classes without a policy
	// are never triggered.
	Policies map[domain.SensorClass]domain.Policy
	// Classes is the managed set in scheduling order.
	Classes []domain.SensorClass
	// Exclude removes classes from periodic triggering, e.g. the camera
	// when it is driven by motion.
	Exclude []domain.SensorClass
	// Timezone is used for cron cadences; empty means local time.
	Timezone string
}

type entry struct {
	policy   domain.Policy
	schedule cron.Schedule // nil for fixed interval
	last     time.Time
	fired    bool
}

func (e *entry) nextDue() time.Time {
	if !e.fired {
		return time.Time{}
	}
	if e.schedule != nil {
		return e.schedule.Next(e.last)
	}
	return e.last.Add(e.policy.Interval)
}

// due reports whether the class should be triggered at now. A class that
// has never fired is always due.
func (e *entry) due(now time.Time) bool {
	return !e.fired || !now.Before(e.nextDue())
}

// ClassStatus is one row of Snapshot.
type ClassStatus struct {
	Class         domain.SensorClass `json:"sensor"`
	Interval      string             `json:"interval,omitempty"`
	Cron          string             `json:"cron,omitempty"`
	LastTriggered *time.Time         `json:"last_triggered,omitempty"`
	NextDue       *time.Time         `json:"next_due,omitempty"`
}

// Scheduler emits a trigger event for every managed class whenever its
// cadence says it is due. Between passes it sleeps until the earliest next
// due time instead of polling.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	emitter EventEmitter
	clock   clock.Clock
	metrics MetricsSink // optional, nil = disabled
}

// New builds a scheduler for cfg. Cron cadences are parsed here so a bad
// expression fails at startup.
func New(cfg Config, emitter EventEmitter) (*Scheduler, error) {
	excluded := make(map[domain.SensorClass]bool, len(cfg.Exclude))
	for _, c := range cfg.Exclude {
		excluded[c] = true
	}

	parser := cron.NewParser()
	s := &Scheduler{
		emitter: emitter,
		clock:   clock.New(),
	}
	for _, class := range cfg.Classes {
		if excluded[class] {
			continue
		}
		policy, ok := cfg.Policies[class]
		if !ok {
			continue
		}
		e := &entry{policy: policy}
		if policy.Cron != "" {
			sched, err := parser.Parse(policy.Cron, cfg.Timezone)
			if err != nil {
				return nil, fmt.Errorf("scheduler: %s: %w", class, err)
			}
			e.schedule = sched
		} else if policy.Interval <= 0 {
			return nil, fmt.Errorf("scheduler: %s: interval must be positive", class)
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Attach sets the emitter triggers are submitted to.
func (s *Scheduler) Attach(emitter EventEmitter) {
	s.mu.Lock()
	s.emitter = emitter
	s.mu.Unlock()
}

// WithClock replaces the wall clock, for tests.
func (s *Scheduler) WithClock(c clock.Clock) *Scheduler {
	s.clock = c
	return s
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Classes returns the classes that are periodically triggered.
func (s *Scheduler) Classes() []domain.SensorClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SensorClass, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.policy.Class)
	}
	return out
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	attached := s.emitter != nil
	s.mu.Unlock()
	if !attached {
		return ErrNotAttached
	}

	log.Printf("scheduler: started, classes=%v", s.Classes())

	for {
		next := s.Tick(ctx)

		wait := maxSleep
		if !next.IsZero() {
			wait = next.Sub(s.clock.Now())
			if wait < 0 {
				wait = 0
			}
			if wait > maxSleep {
				wait = maxSleep
			}
		}

		timer := s.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs one pass over the managed classes, submitting a trigger for
// every due class, and returns the earliest next due time (zero when no
// class is managed).
func (s *Scheduler) Tick(ctx context.Context) time.Time {
	start := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	triggered := 0
	var earliest time.Time
	for _, e := range s.entries {
		now := s.clock.Now()
		if e.due(now) {
			s.fire(ctx, e, now)
			triggered++
		}
		next := e.nextDue()
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock.Since(start), triggered)
	}
	return earliest
}

// fire submits one trigger. last is updated even when the submit fails so
// a full queue does not turn into a trigger storm.
func (s *Scheduler) fire(ctx context.Context, e *entry, now time.Time) {
	class := e.policy.Class
	trigger := domain.NewTrigger(class, now, e.policy.Expiration)

	e.last = now
	e.fired = true

	if err := s.emitter.Emit(ctx, trigger); err != nil {
		log.Printf("scheduler: emit trigger sensor=%s error: %v", class, err)
		if s.metrics != nil {
			s.metrics.SubmitError(string(domain.KindTrigger))
		}
		return
	}
	if s.metrics != nil {
		s.metrics.TriggerEmitted(string(class))
	}
}

// Snapshot returns the last trigger time and next due time of every
// managed class, sorted by class name.
func (s *Scheduler) Snapshot() []ClassStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ClassStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := ClassStatus{Class: e.policy.Class, Cron: e.policy.Cron}
		if e.schedule == nil {
			st.Interval = e.policy.Interval.String()
		}
		if e.fired {
			last := e.last
			next := e.nextDue()
			st.LastTriggered = &last
			st.NextDue = &next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}
