// Package upload is the HTTP client for the collector API.
//
// Scalar readings are posted as timeseries records. Media readings go in two
// phases: the blob is uploaded first and the returned location is then
// submitted as an ordinary timeseries record by the dispatcher.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/circuitbreaker"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/metrics"
)

// Routes, relative to the API endpoint. They double as metric labels and
// circuit breaker keys.
const (
	RouteLog    = "/update/log"
	RouteDevice = "/update/device"
	RouteImage  = "/upload/image"
	RouteAudio  = "/upload/audio"
)

const (
	// DefaultTimeout applies when New is given a non-positive timeout.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20

	statusSuccess = "success"
)

// MetricsSink receives upload attempt observations.
type MetricsSink interface {
	UploadAttemptCompleted(route, statusClass string, d time.Duration)
}

// Error is returned when the API answers with a non-2xx code or a
// response whose status is not "success".
type Error struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upload: %s: http %d status %q", e.Op, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("upload: %s: http %d", e.Op, e.StatusCode)
}

// Client talks to the collector API on behalf of one device.
type Client struct {
	baseURL string
	device  string
	timeout time.Duration
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics MetricsSink
}

// New creates a client for baseURL (without trailing slash). Every request
// is bounded by timeout.
func New(baseURL, device string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		device:  device,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithCircuitBreaker enables per-route fail-fast. A nil breaker disables it.
func (c *Client) WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) *Client {
	c.breaker = cb
	return c
}

// WithMetrics sets the metrics sink. Pass nil to disable metrics.
func (c *Client) WithMetrics(sink MetricsSink) *Client {
	c.metrics = sink
	return c
}

type timeseriesMetadata struct {
	Device string `json:"device"`
	Sensor string `json:"sensor"`
}

type timeseriesLog struct {
	Timestamp string             `json:"timestamp"`
	Metadata  timeseriesMetadata `json:"metadata"`
	Data      map[string]any     `json:"data"`
}

// SubmitTimeseries posts one reading as a timeseries record.
func (c *Client) SubmitTimeseries(ctx context.Context, class domain.SensorClass, readAt time.Time, reading domain.Reading) error {
	body, err := json.Marshal(timeseriesLog{
		Timestamp: readAt.UTC().Format(time.RFC3339Nano),
		Metadata:  timeseriesMetadata{Device: c.device, Sensor: string(class)},
		Data:      reading.TimeseriesData(),
	})
	if err != nil {
		return fmt.Errorf("upload: marshal timeseries: %w", err)
	}

	_, err = c.do(ctx, "submit timeseries", RouteLog, "application/json", body)
	return err
}

// apiResponse is the body of every collector answer. Link is only set by
// the blob routes.
type apiResponse struct {
	APIVersion string `json:"apiVersion"`
	Status     string `json:"status"`
	Link       string `json:"link,omitempty"`
}

// UploadBlob uploads the file at path and returns the location the API
// stored it at.
func (c *Client) UploadBlob(ctx context.Context, path string, mediaType domain.MediaType) (string, error) {
	route := RouteImage
	op := "upload image"
	if mediaType == domain.MediaAudio {
		route = RouteAudio
		op = "upload audio"
	}

	body, contentType, err := multipartFile(path, mediaType)
	if err != nil {
		return "", fmt.Errorf("upload: %s: %w", op, err)
	}

	resp, err := c.do(ctx, op, route, contentType, body)
	if err != nil {
		return "", err
	}
	if resp.Link == "" {
		return "", &Error{Op: op, StatusCode: http.StatusOK, Status: resp.Status}
	}
	return resp.Link, nil
}

// multipartFile builds a form with the file under the "file" field.
func multipartFile(path string, mediaType domain.MediaType) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", mediaType.ContentType())
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// do sends one POST through the circuit breaker and reports the attempt.
// A 2xx answer whose status is not "success" is an *Error.
func (c *Client) do(ctx context.Context, op, route, contentType string, body []byte) (apiResponse, error) {
	var resp apiResponse

	if err := c.breaker.Allow(route); err != nil {
		c.observe(route, 0, err, 0)
		return resp, fmt.Errorf("upload: %s: %w", op, err)
	}

	start := time.Now()
	respBody, statusCode, err := c.send(ctx, route, contentType, body)
	c.observe(route, statusCode, err, time.Since(start))

	switch {
	case err != nil:
		c.breaker.RecordFailure(route)
		if ctx.Err() == nil {
			log.Printf("upload: %s failed route=%s err=%v", op, route, err)
		}
		return resp, fmt.Errorf("upload: %s: %w", op, err)
	case statusCode >= 500:
		c.breaker.RecordFailure(route)
		return resp, &Error{Op: op, StatusCode: statusCode}
	case statusCode < 200 || statusCode >= 300:
		// 4xx is a client mistake; the route itself is healthy.
		c.breaker.RecordSuccess(route)
		return resp, &Error{Op: op, StatusCode: statusCode}
	}

	c.breaker.RecordSuccess(route)
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return resp, fmt.Errorf("upload: %s: decode response: %w", op, err)
	}
	if resp.Status != statusSuccess {
		log.Printf("upload: %s rejected route=%s status=%q", op, route, resp.Status)
		return resp, &Error{Op: op, StatusCode: statusCode, Status: resp.Status}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, route, contentType string, body []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) observe(route string, statusCode int, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.UploadAttemptCompleted(route, metrics.ClassifyStatus(statusCode, err), d)
}
