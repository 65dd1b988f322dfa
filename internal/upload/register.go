package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// DeviceInfo is the registration record sent once at startup.
type DeviceInfo struct {
	Device          string   `json:"device"`
	UserSetLocation string   `json:"userSetLocation,omitempty"`
	Sensors         []string `json:"sensors,omitempty"`
}

// NewDeviceInfo builds the registration record for the enabled classes.
func NewDeviceInfo(device, location string, classes []domain.SensorClass) DeviceInfo {
	info := DeviceInfo{Device: device, UserSetLocation: location}
	for _, c := range classes {
		info.Sensors = append(info.Sensors, string(c))
	}
	return info
}

// RegisterDevice announces the device to the API, retrying with exponential
// backoff until it succeeds, a 4xx makes retrying pointless, or maxElapsed
// passes.
func (c *Client) RegisterDevice(ctx context.Context, info DeviceInfo, maxElapsed time.Duration) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("upload: marshal device: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		_, err := c.do(ctx, "register device", RouteDevice, "application/json", body)
		if err == nil {
			return nil
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		log.Printf("upload: register attempt=%d device=%s err=%v", attempt, info.Device, err)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}
	log.Printf("upload: registered device=%s sensors=%v attempts=%d", info.Device, info.Sensors, attempt)
	return nil
}
