package capture

import (
	"context"
	"errors"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

func readMedia(t *testing.T, c *Capturer) domain.MediaReading {
	t.Helper()
	r, err := c.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m, ok := r.(domain.MediaReading)
	if !ok {
		t.Fatalf("expected MediaReading, got %T", r)
	}
	return m
}

func TestCapturer_SynthesisedImage(t *testing.T) {
	dir := t.TempDir()
	c, err := New(domain.ClassCamera, dir, "")
	if err != nil {
		t.Fatal(err)
	}

	m := readMedia(t, c)
	if m.MediaType != domain.MediaImage || filepath.Ext(m.Path) != ".jpg" {
		t.Fatalf("unexpected reading %+v", m)
	}
	f, err := os.Open(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("not a jpeg: %v", err)
	}
	if cfg.Width != cardWidth || cfg.Height != cardHeight {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCapturer_SynthesisedAudio(t *testing.T) {
	c, err := New(domain.ClassMicrophone, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	m := readMedia(t, c)
	if m.MediaType != domain.MediaAudio || filepath.Ext(m.Path) != ".wav" {
		t.Fatalf("unexpected reading %+v", m)
	}
	f, err := os.Open(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("not a valid wav file")
	}
	if dec.SampleRate != toneSampleRate || dec.BitDepth != toneBitDepth || dec.NumChans != 1 {
		t.Errorf("format = %d Hz %d bit %d ch", dec.SampleRate, dec.BitDepth, dec.NumChans)
	}
}

func TestCapturer_UniqueFileNames(t *testing.T) {
	c, err := New(domain.ClassCamera, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	a := readMedia(t, c)
	b := readMedia(t, c)
	if a.Path == b.Path {
		t.Fatalf("two captures share path %s", a.Path)
	}
}

func TestCapturer_Command(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	c, err := New(domain.ClassCamera, t.TempDir(), "sh -c echo>{path}")
	if err != nil {
		t.Fatal(err)
	}

	m := readMedia(t, c)
	if !strings.HasPrefix(filepath.Base(m.Path), "rpicam-") {
		t.Errorf("unexpected file name %s", m.Path)
	}
}

func TestCapturer_CommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	c, err := New(domain.ClassMicrophone, t.TempDir(), "false {path}")
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Read(context.Background())
	var se *sensor.Error
	if !errors.As(err, &se) || se.Kind != sensor.KindDevice {
		t.Fatalf("expected device error, got %v", err)
	}
}

func TestCapturer_CommandTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// $0 receives the path; the script itself just hangs
	c, err := New(domain.ClassCamera, t.TempDir(), "sh -c exec${IFS}sleep${IFS}5 {path}")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Read(ctx)
	var se *sensor.Error
	if !errors.As(err, &se) || se.Kind != sensor.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(domain.ClassGas, t.TempDir(), ""); !errors.Is(err, domain.ErrUnknownClass) {
		t.Errorf("scalar class: expected ErrUnknownClass, got %v", err)
	}
	if _, err := New(domain.ClassCamera, t.TempDir(), "libcamera-still -o out.jpg"); err == nil {
		t.Error("expected error for command without path placeholder")
	}
}
