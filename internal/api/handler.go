package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/circuitbreaker"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/dispatcher"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/scheduler"
)

// healthTimeout bounds each component check of a verbose /health.
const healthTimeout = 3 * time.Second

type SchedulerStatus interface {
	Snapshot() []scheduler.ClassStatus
}

type DispatcherStatus interface {
	Stats() dispatcher.Stats
}

type GuardStatus interface {
	Held() map[string]bool
}

type QueueStatus interface {
	Len() int
	Cap() int
}

type BreakerStatus interface {
	States() map[string]circuitbreaker.State
}

// ReadingCounter returns the number of readings uploaded for class in the
// analytics window containing t.
type ReadingCounter interface {
	Count(ctx context.Context, class domain.SensorClass, t time.Time) (int64, error)
}

// HealthChecker reports the reachability of one dependency for verbose /health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// Handler serves the local status endpoints of the acquisition client.
type Handler struct {
	device     string
	startedAt  time.Time
	scheduler  SchedulerStatus
	dispatcher DispatcherStatus
	guards     GuardStatus
	queue      QueueStatus
	breakers   BreakerStatus  // optional
	counter    ReadingCounter // optional
	classes    []domain.SensorClass
	checks     map[string]HealthChecker // optional
	now        func() time.Time
}

func NewHandler(device string, sched SchedulerStatus, disp DispatcherStatus, guards GuardStatus, queue QueueStatus) *Handler {
	return &Handler{
		device:     device,
		startedAt:  time.Now(),
		scheduler:  sched,
		dispatcher: disp,
		guards:     guards,
		queue:      queue,
		checks:     make(map[string]HealthChecker),
		now:        time.Now,
	}
}

// WithBreakers exposes circuit breaker states on /status.
func (h *Handler) WithBreakers(b BreakerStatus) *Handler {
	h.breakers = b
	return h
}

// WithReadingCounts adds the current-window reading count of each class to /status.
func (h *Handler) WithReadingCounts(c ReadingCounter, classes []domain.SensorClass) *Handler {
	h.counter = c
	h.classes = classes
	return h
}

// WithHealthChecker adds a named component to verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checks[name] = c
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/status" && r.Method == http.MethodGet:
		h.status(w, r)

	case path == "/health" || path == "/status":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := h.checks[name].PingContext(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Device:    h.device,
		StartedAt: formatTime(h.startedAt),
		Uptime:    h.now().Sub(h.startedAt).Truncate(time.Second).String(),
		Scheduler: h.scheduler.Snapshot(),
		Guards:    h.guards.Held(),
		Queue:     QueueResponse{Length: h.queue.Len(), Capacity: h.queue.Cap()},
		Handlers:  h.dispatcher.Stats(),
	}
	if h.breakers != nil {
		resp.Breakers = h.breakers.States()
	}
	if h.counter != nil {
		resp.Readings = h.readingCounts(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// readingCounts skips classes whose counter cannot be read.
func (h *Handler) readingCounts(ctx context.Context) map[string]int64 {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	now := h.now()
	counts := make(map[string]int64, len(h.classes))
	for _, class := range h.classes {
		n, err := h.counter.Count(ctx, class, now)
		if err != nil {
			log.Printf("api: reading count sensor=%s: %v", class, err)
			continue
		}
		counts[string(class)] = n
	}
	return counts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
