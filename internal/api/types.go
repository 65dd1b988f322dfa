package api

import (
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/circuitbreaker"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/dispatcher"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/scheduler"
)

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// StatusResponse represents the /status endpoint response.
type StatusResponse struct {
	Device    string                          `json:"device"`
	StartedAt string                          `json:"started_at"`
	Uptime    string                          `json:"uptime"`
	Scheduler []scheduler.ClassStatus         `json:"scheduler"`
	Guards    map[string]bool                 `json:"guards_held"`
	Queue     QueueResponse                   `json:"queue"`
	Handlers  dispatcher.Stats                `json:"handlers"`
	Breakers  map[string]circuitbreaker.State `json:"circuit_breakers,omitempty"`
	Readings  map[string]int64                `json:"readings_this_window,omitempty"`
}

type QueueResponse struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
