package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("pi", "lab 3", []domain.SensorClass{domain.ClassGas, domain.ClassCamera})
	if info.Device != "pi" || info.UserSetLocation != "lab 3" {
		t.Errorf("got %+v", info)
	}
	if len(info.Sensors) != 2 || info.Sensors[0] != "SCD41" || info.Sensors[1] != "RPICAM" {
		t.Errorf("sensors: got %v", info.Sensors)
	}
}

func TestRegisterDevice_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	var got DeviceInfo
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RouteDevice {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, successBody)
	}))
	defer srv.Close()

	c := New(srv.URL, "pi", time.Second)
	info := NewDeviceInfo("pi", "", []domain.SensorClass{domain.ClassLight})
	if err := c.RegisterDevice(context.Background(), info, 30*time.Second); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if got.Device != "pi" || len(got.Sensors) != 1 || got.Sensors[0] != "TSL2591" {
		t.Errorf("payload: got %+v", got)
	}
}

func TestRegisterDevice_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := New(srv.URL, "pi", time.Second).RegisterDevice(context.Background(), DeviceInfo{Device: "pi"}, time.Minute)

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 *Error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not be retried, calls=%d", calls.Load())
	}
}

func TestRegisterDevice_StatusNotSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"apiVersion":"1.0","status":"update failed"}`)
	}))
	defer srv.Close()

	err := New(srv.URL, "pi", time.Second).RegisterDevice(context.Background(), DeviceInfo{Device: "pi"}, 300*time.Millisecond)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusOK || apiErr.Status != "update failed" {
		t.Errorf("got StatusCode=%d Status=%q", apiErr.StatusCode, apiErr.Status)
	}
	if calls.Load() < 1 {
		t.Errorf("expected at least one call, got %d", calls.Load())
	}
}

func TestRegisterDevice_RetriesRejectedStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"apiVersion":"1.0","status":"update failed"}`)
			return
		}
		_, _ = io.WriteString(w, successBody)
	}))
	defer srv.Close()

	if err := New(srv.URL, "pi", time.Second).RegisterDevice(context.Background(), DeviceInfo{Device: "pi"}, 30*time.Second); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestRegisterDevice_StopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := New(srv.URL, "pi", time.Second).RegisterDevice(ctx, DeviceInfo{Device: "pi"}, time.Hour)
	if err == nil {
		t.Fatal("expected error after context cancel")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retry loop ignored context: %v", elapsed)
	}
}
