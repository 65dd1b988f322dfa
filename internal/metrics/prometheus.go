package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal       prometheus.Counter
	tickDuration     prometheus.Histogram
	triggersTotal    *prometheus.CounterVec
	triggeredPerTick prometheus.Histogram

	// Dispatcher metrics
	idleHeartbeatsTotal prometheus.Counter
	staleEventsTotal    *prometheus.CounterVec
	handlerOutcomes     *prometheus.CounterVec
	handlerDuration     *prometheus.HistogramVec
	submitErrorsTotal   *prometheus.CounterVec
	poolSaturatedTotal  prometheus.Counter
	eventsInFlight      prometheus.Gauge
	motionEdgesTotal    prometheus.Counter

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Guard metrics
	guardWait     *prometheus.HistogramVec
	guardHold     *prometheus.HistogramVec
	guardTimeouts *prometheus.CounterVec

	// Upload metrics
	uploadAttempts *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initGuardMetrics(reg)
	s.initUploadMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsense_scheduler_ticks_total",
		Help: "Total number of scheduler passes over the trigger table.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomsense_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler pass in seconds.",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
	})
	s.triggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_scheduler_triggers_total",
		Help: "Total number of periodic trigger events emitted per sensor class.",
	}, []string{"sensor"})
	s.triggeredPerTick = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomsense_scheduler_triggers_per_tick",
		Help:    "Number of classes found due in one scheduler pass.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
	})

	s.register(reg, s.ticksTotal, "roomsense_scheduler_ticks_total")
	s.register(reg, s.tickDuration, "roomsense_scheduler_tick_duration_seconds")
	s.register(reg, s.triggersTotal, "roomsense_scheduler_triggers_total")
	s.register(reg, s.triggeredPerTick, "roomsense_scheduler_triggers_per_tick")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.idleHeartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_idle_heartbeats_total",
		Help: "Total number of poll timeouts with an empty queue.",
	})
	s.staleEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_stale_events_total",
		Help: "Total number of events dropped because they expired before dispatch.",
	}, []string{"sensor", "kind"})
	s.handlerOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_handler_outcomes_total",
		Help: "Total number of handler completions per sensor class, event kind and outcome.",
	}, []string{"sensor", "kind", "outcome"})
	s.handlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomsense_dispatcher_handler_duration_seconds",
		Help:    "Handler run time in seconds, including guard wait.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"sensor", "kind"})
	s.submitErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_submit_errors_total",
		Help: "Total number of follow-up events that could not be enqueued.",
	}, []string{"kind"})
	s.poolSaturatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_pool_saturated_total",
		Help: "Total number of dispatches that had to wait for a free worker.",
	})
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsense_dispatcher_events_in_flight",
		Help: "Number of handlers currently running.",
	})
	s.motionEdgesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsense_dispatcher_motion_rising_edges_total",
		Help: "Total number of motion rising edges that armed a camera capture.",
	})

	s.register(reg, s.idleHeartbeatsTotal, "roomsense_dispatcher_idle_heartbeats_total")
	s.register(reg, s.staleEventsTotal, "roomsense_dispatcher_stale_events_total")
	s.register(reg, s.handlerOutcomes, "roomsense_dispatcher_handler_outcomes_total")
	s.register(reg, s.handlerDuration, "roomsense_dispatcher_handler_duration_seconds")
	s.register(reg, s.submitErrorsTotal, "roomsense_dispatcher_submit_errors_total")
	s.register(reg, s.poolSaturatedTotal, "roomsense_dispatcher_pool_saturated_total")
	s.register(reg, s.eventsInFlight, "roomsense_dispatcher_events_in_flight")
	s.register(reg, s.motionEdgesTotal, "roomsense_dispatcher_motion_rising_edges_total")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsense_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsense_eventbus_buffer_capacity",
		Help: "Capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsense_eventbus_buffer_saturation",
		Help: "Fraction of the event bus buffer in use.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsense_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "roomsense_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "roomsense_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "roomsense_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "roomsense_eventbus_emit_errors_total")
}

func (s *PrometheusSink) initGuardMetrics(reg prometheus.Registerer) {
	s.guardWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomsense_guard_wait_seconds",
		Help:    "Time spent waiting to acquire a resource guard.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"resource"})
	s.guardHold = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomsense_guard_hold_seconds",
		Help:    "Time a resource guard was held by one operation.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"resource"})
	s.guardTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_guard_timeouts_total",
		Help: "Total number of guarded operations abandoned after their timeout.",
	}, []string{"resource"})

	s.register(reg, s.guardWait, "roomsense_guard_wait_seconds")
	s.register(reg, s.guardHold, "roomsense_guard_hold_seconds")
	s.register(reg, s.guardTimeouts, "roomsense_guard_timeouts_total")
}

func (s *PrometheusSink) initUploadMetrics(reg prometheus.Registerer) {
	s.uploadAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsense_upload_attempts_total",
		Help: "Total number of collector requests per route and status class.",
	}, []string{"route", "status_class"})
	s.uploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomsense_upload_duration_seconds",
		Help:    "Collector request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"route"})

	s.register(reg, s.uploadAttempts, "roomsense_upload_attempts_total")
	s.register(reg, s.uploadDuration, "roomsense_upload_duration_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickCompleted(duration time.Duration, triggered int) {
	s.ticksTotal.Inc()
	s.tickDuration.Observe(duration.Seconds())
	s.triggeredPerTick.Observe(float64(triggered))
}

func (s *PrometheusSink) TriggerEmitted(class string) {
	s.triggersTotal.WithLabelValues(class).Inc()
}

// Dispatcher metrics implementation

func (s *PrometheusSink) IdleHeartbeat() {
	s.idleHeartbeatsTotal.Inc()
}

func (s *PrometheusSink) EventStale(class, kind string) {
	s.staleEventsTotal.WithLabelValues(class, kind).Inc()
}

func (s *PrometheusSink) HandlerOutcome(class, kind, outcome string) {
	s.handlerOutcomes.WithLabelValues(class, kind, outcome).Inc()
}

func (s *PrometheusSink) HandlerDuration(class, kind string, d time.Duration) {
	s.handlerDuration.WithLabelValues(class, kind).Observe(d.Seconds())
}

func (s *PrometheusSink) SubmitError(kind string) {
	s.submitErrorsTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) PoolSaturated() {
	s.poolSaturatedTotal.Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

func (s *PrometheusSink) MotionRisingEdge() {
	s.motionEdgesTotal.Inc()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Guard metrics implementation

func (s *PrometheusSink) GuardWait(resource string, d time.Duration) {
	s.guardWait.WithLabelValues(resource).Observe(d.Seconds())
}

func (s *PrometheusSink) GuardHold(resource string, d time.Duration) {
	s.guardHold.WithLabelValues(resource).Observe(d.Seconds())
}

func (s *PrometheusSink) GuardTimeout(resource string) {
	s.guardTimeouts.WithLabelValues(resource).Inc()
}

// Upload metrics implementation

func (s *PrometheusSink) UploadAttemptCompleted(route, statusClass string, d time.Duration) {
	s.uploadAttempts.WithLabelValues(route, statusClass).Inc()
	s.uploadDuration.WithLabelValues(route).Observe(d.Seconds())
}
