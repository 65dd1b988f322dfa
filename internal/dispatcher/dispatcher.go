package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/guard"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/metrics"
)

// ErrNoHandler is returned by Dispatch for an event variant or sensor class
// nothing is registered for. The event is dropped without side effects.
var ErrNoHandler = errors.New("no handler for event")

const (
	DefaultPollTimeout  = time.Second
	DefaultDrainTimeout = 30 * time.Second
	DefaultWorkers      = 16

	// drainPoll is how long drain waits for follow-up events from handlers
	// that are still running.
	drainPoll = 10 * time.Millisecond
)

// Emitter enqueues events for later dispatch.
type Emitter interface {
	Emit(ctx context.Context, event domain.Event) error
}

// Adapter reads one measurement from a sensor.
type Adapter interface {
	Read(ctx context.Context) (domain.Reading, error)
}

// Uploader sends finished readings to the collector.
type Uploader interface {
	SubmitTimeseries(ctx context.Context, class domain.SensorClass, readAt time.Time, reading domain.Reading) error
	UploadBlob(ctx context.Context, path string, mediaType domain.MediaType) (string, error)
}

// AnalyticsSink counts uploaded readings. Best effort.
type AnalyticsSink interface {
	Record(ctx context.Context, class domain.SensorClass, readAt time.Time)
}

// Mirror republishes uploaded scalar readings locally. Best effort.
type Mirror interface {
	Publish(ctx context.Context, class domain.SensorClass, readAt time.Time, reading domain.Reading)
}

// MetricsSink defines the interface for recording dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	IdleHeartbeat()
	EventStale(class, kind string)
	HandlerOutcome(class, kind, outcome string)
	HandlerDuration(class, kind string, d time.Duration)
	SubmitError(kind string)
	PoolSaturated()
	EventsInFlightIncr()
	EventsInFlightDecr()
	MotionRisingEdge()
}

type Config struct {
	// PollTimeout is the longest Run waits for an event before logging an
	// idle heartbeat.
	PollTimeout time.Duration
	// DrainTimeout bounds shutdown: buffered events and in-flight handlers
	// get this long after Run's context is cancelled.
	DrainTimeout time.Duration
	// Workers caps concurrently running handlers.
	Workers int64
	// AdapterTimeout bounds one sensor read while its guard is held.
	// Zero disables the bound.
	AdapterTimeout time.Duration
	// Policies supplies the expiration horizon of derived triggers.
	Policies map[domain.SensorClass]domain.Policy
	// MotionTriggersCamera enables the motion to camera rule.
	MotionTriggersCamera bool
	// MediaCleanup removes captured files once their reading is handled or
	// dropped as stale.
	MediaCleanup bool
	// Debug logs stale drops and idle heartbeats.
	Debug bool
}

// Stats is a point-in-time view of the dispatcher counters.
type Stats struct {
	Dispatched  uint64 `json:"dispatched"`
	Succeeded   uint64 `json:"succeeded"`
	Failed      uint64 `json:"failed"`
	Skipped     uint64 `json:"skipped"`
	Stale       uint64 `json:"stale"`
	Heartbeats  uint64 `json:"heartbeats"`
	InFlight    int64  `json:"in_flight"`
	MotionArmed bool   `json:"motion_armed"`
}

type counters struct {
	dispatched atomic.Uint64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	skipped    atomic.Uint64
	stale      atomic.Uint64
	heartbeats atomic.Uint64
	inFlight   atomic.Int64
}

// Dispatcher takes events off the queue in FIFO order, drops the stale
// ones and runs a handler for each live one on a bounded worker pool.
type Dispatcher struct {
	cfg      Config
	bus      Emitter
	adapters map[domain.SensorClass]Adapter
	guards   *guard.Set
	uploader Uploader
	motion   *MotionState
	pool     *semaphore.Weighted
	wg       sync.WaitGroup
	clock    clock.Clock
	stats    counters

	analytics AnalyticsSink // optional, nil = disabled
	mirror    Mirror        // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
}

func New(cfg Config, bus Emitter, adapters map[domain.SensorClass]Adapter, guards *guard.Set, uploader Uploader) *Dispatcher {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Policies == nil {
		cfg.Policies = domain.DefaultPolicies()
	}
	if guards == nil {
		guards = guard.NewSet()
	}
	return &Dispatcher{
		cfg:      cfg,
		bus:      bus,
		adapters: adapters,
		guards:   guards,
		uploader: uploader,
		motion:   &MotionState{},
		pool:     semaphore.NewWeighted(cfg.Workers),
		clock:    clock.New(),
	}
}

func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

func (d *Dispatcher) WithMirror(m Mirror) *Dispatcher {
	d.mirror = m
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithClock replaces the wall clock, for tests.
func (d *Dispatcher) WithClock(c clock.Clock) *Dispatcher {
	d.clock = c
	return d
}

// Submit enqueues event. A full queue yields channel.ErrBufferFull; the
// caller logs it and carries on.
func (d *Dispatcher) Submit(ctx context.Context, event domain.Event) error {
	if err := d.bus.Emit(ctx, event); err != nil {
		if d.metrics != nil {
			d.metrics.SubmitError(string(event.Kind()))
		}
		return fmt.Errorf("submit %s sensor=%s: %w", event.Kind(), event.SensorClass(), err)
	}
	return nil
}

// Run processes events from the channel until ctx is cancelled. After
// cancellation it drains buffered events, including follow-ups produced by
// handlers still running, and waits for in-flight handlers, all bounded by
// the drain timeout.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan domain.Event) {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	log.Printf("dispatcher: started, workers=%d poll_timeout=%s", d.cfg.Workers, d.cfg.PollTimeout)

	for {
		timer := d.clock.Timer(d.cfg.PollTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.shutdown(workCtx, cancelWork, ch)
			return
		case event := <-ch:
			timer.Stop()
			if !d.handle(workCtx, ctx, event) {
				// cancelled while waiting for a worker
				d.shutdown(workCtx, cancelWork, ch, event)
				return
			}
		case <-timer.C:
			d.stats.heartbeats.Add(1)
			if d.metrics != nil {
				d.metrics.IdleHeartbeat()
			}
			if d.cfg.Debug {
				log.Printf("dispatcher: idle heartbeat count=%d", d.stats.heartbeats.Load())
			}
		}
	}
}

func (d *Dispatcher) shutdown(workCtx context.Context, cancelWork context.CancelFunc, ch <-chan domain.Event, pending ...domain.Event) {
	d.drain(workCtx, ch, pending)
	cancelWork()
	d.wg.Wait()
	log.Println("dispatcher: stopped")
}

// drain dispatches what is left in the channel. Handlers may still emit
// follow-up events, so an empty channel only ends the drain once no
// handler is running.
func (d *Dispatcher) drain(workCtx context.Context, ch <-chan domain.Event, pending []domain.Event) {
	drainCtx, cancel := context.WithTimeout(workCtx, d.cfg.DrainTimeout)
	defer cancel()

	count := 0
	for _, event := range pending {
		d.handle(workCtx, drainCtx, event)
		count++
	}
	for {
		select {
		case <-drainCtx.Done():
			log.Printf("dispatcher: drain timeout, processed %d events, in_flight=%d", count, d.stats.inFlight.Load())
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("dispatcher: drain complete, processed %d events", count)
				d.waitIdle(drainCtx)
				return
			}
			d.handle(workCtx, drainCtx, event)
			count++
		default:
			// handlers emit before leaving, so with none in flight an empty
			// channel stays empty
			if d.stats.inFlight.Load() == 0 {
				if len(ch) > 0 {
					continue
				}
				if count > 0 {
					log.Printf("dispatcher: drain complete, processed %d events", count)
				}
				return
			}
			select {
			case <-drainCtx.Done():
			case <-time.After(drainPoll):
			}
		}
	}
}

func (d *Dispatcher) waitIdle(ctx context.Context) {
	for d.stats.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(drainPoll):
		}
	}
}

// handle drops event if it is stale and otherwise hands it to the pool.
// workCtx is passed to the handler; waitCtx bounds the wait for a worker.
// It returns false only when waitCtx ended before a worker was free.
func (d *Dispatcher) handle(workCtx, waitCtx context.Context, event domain.Event) bool {
	class, kind := string(event.SensorClass()), string(event.Kind())

	if !event.EventMeta().Live(d.clock.Now()) {
		d.stats.stale.Add(1)
		if d.metrics != nil {
			d.metrics.EventStale(class, kind)
		}
		if d.cfg.Debug {
			log.Printf("dispatcher: dropped stale event id=%s sensor=%s kind=%s expired_at=%s",
				event.EventMeta().ID, class, kind, event.EventMeta().ExpiresAt.Format(time.RFC3339))
		}
		if e, ok := event.(domain.ReadingEvent); ok {
			if r, ok := e.Reading.(domain.MediaReading); ok {
				d.discardMedia(r.Path)
			}
		}
		return true
	}

	if !d.pool.TryAcquire(1) {
		if d.metrics != nil {
			d.metrics.PoolSaturated()
		}
		if err := d.pool.Acquire(waitCtx, 1); err != nil {
			log.Printf("dispatcher: no worker for sensor=%s kind=%s: %v", class, kind, err)
			return false
		}
	}

	d.stats.dispatched.Add(1)
	d.stats.inFlight.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.pool.Release(1)
		defer d.stats.inFlight.Add(-1)
		d.runHandler(workCtx, event)
	}()
	return true
}

// runHandler dispatches event and records its outcome. A panicking handler
// counts as a failure.
func (d *Dispatcher) runHandler(ctx context.Context, event domain.Event) {
	class, kind := string(event.SensorClass()), string(event.Kind())

	if d.metrics != nil {
		d.metrics.EventsInFlightIncr()
		defer d.metrics.EventsInFlightDecr()
	}

	start := d.clock.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return d.Dispatch(ctx, event)
	}()

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
		d.stats.succeeded.Add(1)
	case errors.Is(err, ErrNoHandler):
		outcome = metrics.OutcomeSkipped
		d.stats.skipped.Add(1)
		if d.cfg.Debug {
			log.Printf("dispatcher: skipped sensor=%s kind=%s: %v", class, kind, err)
		}
	default:
		outcome = metrics.OutcomeFailed
		d.stats.failed.Add(1)
		log.Printf("dispatcher: sensor=%s kind=%s id=%s failed: %v", class, kind, event.EventMeta().ID, err)
	}

	if d.metrics != nil {
		d.metrics.HandlerOutcome(class, kind, outcome)
		d.metrics.HandlerDuration(class, kind, d.clock.Since(start))
	}
}

// Dispatch runs the handler for event synchronously. Unknown variants and
// classes without a handler return ErrNoHandler and do nothing else.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.TriggerEvent:
		return d.handleTrigger(ctx, e)
	case domain.ReadingEvent:
		return d.handleReading(ctx, e)
	case domain.AssetLocationEvent:
		return d.handleAssetLocation(ctx, e)
	default:
		return fmt.Errorf("%w: %T", ErrNoHandler, event)
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:  d.stats.dispatched.Load(),
		Succeeded:   d.stats.succeeded.Load(),
		Failed:      d.stats.failed.Load(),
		Skipped:     d.stats.skipped.Load(),
		Stale:       d.stats.stale.Load(),
		Heartbeats:  d.stats.heartbeats.Load(),
		InFlight:    d.stats.inFlight.Load(),
		MotionArmed: d.motion.Armed(),
	}
}
