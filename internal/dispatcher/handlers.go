package dispatcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// handleTrigger reads the sensor under its resource guard and queues the
// reading as a return event.
func (d *Dispatcher) handleTrigger(ctx context.Context, e domain.TriggerEvent) error {
	adapter, ok := d.adapters[e.Class]
	if !ok {
		return fmt.Errorf("%w: trigger sensor=%s", ErrNoHandler, e.Class)
	}
	g := d.guards.For(e.Class)
	if g == nil {
		return fmt.Errorf("%w: no guard for sensor=%s", ErrNoHandler, e.Class)
	}

	var (
		reading domain.Reading
		readAt  time.Time
	)
	err := g.Do(ctx, d.cfg.AdapterTimeout, func(ctx context.Context) error {
		r, err := adapter.Read(ctx)
		if err != nil {
			return err
		}
		reading, readAt = r, d.clock.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", e.Class, err)
	}
	if reading == nil {
		return fmt.Errorf("read %s: adapter returned no reading", e.Class)
	}

	return d.Submit(ctx, domain.NewReading(e, reading, readAt))
}

func (d *Dispatcher) handleReading(ctx context.Context, e domain.ReadingEvent) error {
	switch r := e.Reading.(type) {
	case domain.MediaReading:
		return d.handleMedia(ctx, e, r)
	case domain.MotionReading:
		if d.cfg.MotionTriggersCamera {
			d.observeMotion(ctx, r)
		}
		return d.uploadScalar(ctx, e)
	case domain.GasReading, domain.HumidityTemperatureReading, domain.LightReading:
		return d.uploadScalar(ctx, e)
	default:
		return fmt.Errorf("%w: reading %T sensor=%s", ErrNoHandler, e.Reading, e.Class)
	}
}

// observeMotion feeds the motion state and requests one camera capture on a
// rising edge. The derived trigger gets a fresh deadline.
func (d *Dispatcher) observeMotion(ctx context.Context, r domain.MotionReading) {
	if !d.motion.Observe(r.Motion) {
		return
	}
	if d.metrics != nil {
		d.metrics.MotionRisingEdge()
	}
	horizon := d.cfg.Policies[domain.ClassCamera].Expiration
	trigger := domain.NewTrigger(domain.ClassCamera, d.clock.Now(), horizon)
	if err := d.Submit(ctx, trigger); err != nil {
		log.Printf("dispatcher: motion capture request dropped: %v", err)
		return
	}
	log.Printf("dispatcher: motion detected, camera trigger id=%s", trigger.ID)
}

func (d *Dispatcher) uploadScalar(ctx context.Context, e domain.ReadingEvent) error {
	if err := d.uploader.SubmitTimeseries(ctx, e.Class, e.ReadAt, e.Reading); err != nil {
		return fmt.Errorf("upload %s: %w", e.Class, err)
	}
	if d.analytics != nil {
		d.analytics.Record(ctx, e.Class, e.ReadAt)
	}
	if d.mirror != nil {
		d.mirror.Publish(ctx, e.Class, e.ReadAt, e.Reading)
	}
	return nil
}

// handleMedia is phase one of a media upload: the blob goes up and its
// remote location is queued as an asset-location event.
func (d *Dispatcher) handleMedia(ctx context.Context, e domain.ReadingEvent, r domain.MediaReading) error {
	location, err := d.uploader.UploadBlob(ctx, r.Path, r.MediaType)
	d.discardMedia(r.Path)
	if err != nil {
		return fmt.Errorf("upload %s blob: %w", e.Class, err)
	}
	return d.Submit(ctx, domain.NewAssetLocation(e, r.MediaType, location, d.clock.Now()))
}

// discardMedia removes a captured file once its reading is done with,
// uploaded or not. It does nothing unless MediaCleanup is set.
func (d *Dispatcher) discardMedia(path string) {
	if !d.cfg.MediaCleanup || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("dispatcher: remove %s: %v", path, err)
	}
}

// handleAssetLocation is phase two: the location is stored as a timeseries record.
func (d *Dispatcher) handleAssetLocation(ctx context.Context, e domain.AssetLocationEvent) error {
	asset := domain.AssetReading{Location: e.Location, MediaType: e.MediaType}
	if err := d.uploader.SubmitTimeseries(ctx, e.Class, e.ReadAt, asset); err != nil {
		return fmt.Errorf("upload %s location: %w", e.Class, err)
	}
	if d.analytics != nil {
		d.analytics.Record(ctx, e.Class, e.ReadAt)
	}
	return nil
}
