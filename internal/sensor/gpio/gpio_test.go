package gpio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

func writeValue(t *testing.T, v string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte(v), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMotion_Read(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1\n", true},
		{"0\n", false},
		{"1", true},
	}
	for _, tt := range tests {
		m := NewMotion(writeValue(t, tt.value))
		r, err := m.Read(context.Background())
		if err != nil {
			t.Fatalf("Read(%q): %v", tt.value, err)
		}
		if r != (domain.MotionReading{Motion: tt.want}) {
			t.Errorf("Read(%q) = %v, want motion=%v", tt.value, r, tt.want)
		}
	}
}

func TestMotion_BadValue(t *testing.T) {
	_, err := NewMotion(writeValue(t, "x")).Read(context.Background())
	var se *sensor.Error
	if !errors.As(err, &se) || se.Kind != sensor.KindDevice {
		t.Fatalf("expected device error, got %v", err)
	}
}

func TestMotion_MissingPin(t *testing.T) {
	_, err := NewMotion(filepath.Join(t.TempDir(), "nope")).Read(context.Background())
	var se *sensor.Error
	if !errors.As(err, &se) || se.Kind != sensor.KindBus {
		t.Fatalf("expected bus error, got %v", err)
	}
}

func TestNewMotion_DefaultPath(t *testing.T) {
	if m := NewMotion(""); m.path != DefaultValuePath {
		t.Errorf("path = %s, want %s", m.path, DefaultValuePath)
	}
}
