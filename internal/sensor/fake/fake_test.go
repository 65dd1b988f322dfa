package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

func TestRoom_ReadingsStayInRange(t *testing.T) {
	room := NewRoom(42).WithLatency(0)
	gas, err := room.Adapter(domain.ClassGas)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 500; i++ {
		r, err := gas.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		g, ok := r.(domain.GasReading)
		if !ok {
			t.Fatalf("expected GasReading, got %T", r)
		}
		if g.CO2 < 400 || g.CO2 > 2000 || g.Humidity < 20 || g.Humidity > 80 || g.Temperature < 16 || g.Temperature > 32 {
			t.Fatalf("reading out of range: %+v", g)
		}
	}
}

func TestRoom_ReadingTypes(t *testing.T) {
	room := NewRoom(1).WithLatency(0)
	tests := []struct {
		class domain.SensorClass
		want  domain.Reading
	}{
		{domain.ClassHumidityTemp, domain.HumidityTemperatureReading{}},
		{domain.ClassLight, domain.LightReading{}},
		{domain.ClassMotion, domain.MotionReading{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			a, err := room.Adapter(tt.class)
			if err != nil {
				t.Fatal(err)
			}
			r, err := a.Read(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			switch tt.want.(type) {
			case domain.HumidityTemperatureReading:
				_, ok := r.(domain.HumidityTemperatureReading)
				if !ok {
					t.Errorf("got %T", r)
				}
			case domain.LightReading:
				_, ok := r.(domain.LightReading)
				if !ok {
					t.Errorf("got %T", r)
				}
			case domain.MotionReading:
				_, ok := r.(domain.MotionReading)
				if !ok {
					t.Errorf("got %T", r)
				}
			}
		})
	}
}

func TestRoom_SameSeedSameWalk(t *testing.T) {
	a, _ := NewRoom(7).WithLatency(0).Adapter(domain.ClassLight)
	b, _ := NewRoom(7).WithLatency(0).Adapter(domain.ClassLight)
	for i := 0; i < 10; i++ {
		ra, _ := a.Read(context.Background())
		rb, _ := b.Read(context.Background())
		if ra != rb {
			t.Fatalf("sample %d differs: %v vs %v", i, ra, rb)
		}
	}
}

func TestRoom_MediaClassRejected(t *testing.T) {
	if _, err := NewRoom(1).Adapter(domain.ClassCamera); !errors.Is(err, domain.ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestRoom_ReadHonoursDeadline(t *testing.T) {
	a, _ := NewRoom(1).WithLatency(time.Second).Adapter(domain.ClassGas)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Read(ctx)
	var se *sensor.Error
	if !errors.As(err, &se) || se.Kind != sensor.KindTimeout {
		t.Fatalf("expected timeout sensor error, got %v", err)
	}
}
