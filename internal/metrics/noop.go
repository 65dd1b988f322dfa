package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickCompleted(duration time.Duration, triggered int)               {}
func (n *NoopSink) TriggerEmitted(class string)                                       {}
func (n *NoopSink) IdleHeartbeat()                                                    {}
func (n *NoopSink) EventStale(class, kind string)                                     {}
func (n *NoopSink) HandlerOutcome(class, kind, outcome string)                        {}
func (n *NoopSink) HandlerDuration(class, kind string, d time.Duration)               {}
func (n *NoopSink) SubmitError(kind string)                                           {}
func (n *NoopSink) PoolSaturated()                                                    {}
func (n *NoopSink) EventsInFlightIncr()                                               {}
func (n *NoopSink) EventsInFlightDecr()                                               {}
func (n *NoopSink) MotionRisingEdge()                                                 {}
func (n *NoopSink) BufferSizeUpdate(size int)                                         {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                    {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                         {}
func (n *NoopSink) EmitError()                                                        {}
func (n *NoopSink) GuardWait(resource string, d time.Duration)                        {}
func (n *NoopSink) GuardHold(resource string, d time.Duration)                        {}
func (n *NoopSink) GuardTimeout(resource string)                                      {}
func (n *NoopSink) UploadAttemptCompleted(route, statusClass string, d time.Duration) {}
