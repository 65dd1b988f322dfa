package cron

import (
	"testing"
	"time"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every 5 minutes", "*/5 * * * *"},
		{"every 30 seconds", "*/30 * * * * *"},
		{"business hours", "0 9-17 * * 1-5"},
		{"every descriptor", "@every 90s"},
		{"hourly descriptor", "@hourly"},
		{"every minute", "* * * * *"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "UTC")
			if err != nil {
				t.Errorf("Parse(%q, UTC) returned error: %v", tt.expr, err)
			}
			if sched == nil {
				t.Errorf("Parse(%q, UTC) returned nil schedule", tt.expr)
			}
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"seven fields", "* * * * * * *"},
		{"invalid minute 60", "60 * * * *"},
		{"invalid hour 25", "0 25 * * *"},
		{"non-numeric", "abc * * * *"},
		{"bad every", "@every soon"},
		{"empty", ""},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.expr, "UTC")
			if err == nil {
				t.Errorf("Parse(%q, UTC) should return error for invalid expression", tt.expr)
			}
		})
	}
}

func TestParser_EmptyTimezoneUsesLocal(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 * * * *", "")
	if err != nil {
		t.Fatalf("Parse with empty timezone returned error: %v", err)
	}
	if sched == nil {
		t.Fatal("Parse with empty timezone returned nil schedule")
	}
}

func TestParser_InvalidTimezone(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse("0 * * * *", "Invalid/Zone"); err == nil {
		t.Error("Parse with timezone Invalid/Zone should return error")
	}
}

func TestParser_NextCalculation_Seconds(t *testing.T) {
	p := NewParser()

	sched, err := p.Parse("*/15 * * * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2024, 1, 15, 9, 0, 1, 0, time.UTC)
	want := time.Date(2024, 1, 15, 9, 0, 15, 0, time.UTC)
	if next := sched.Next(after); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, next, want)
	}
}

func TestParser_NextCalculation_Every(t *testing.T) {
	p := NewParser()

	sched, err := p.Parse("@every 90s", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	want := after.Add(90 * time.Second)
	if next := sched.Next(after); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, next, want)
	}
}

func TestParser_NextCalculation_Daily(t *testing.T) {
	p := NewParser()

	sched, err := p.Parse("0 10 * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	want := time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)
	if next := sched.Next(after); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, next, want)
	}
}
