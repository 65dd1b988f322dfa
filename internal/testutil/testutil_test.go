package testutil

import (
	"os"
	"testing"
	"time"
)

func TestMockClock_StartsAtEpoch(t *testing.T) {
	mock := MockClock()
	if !mock.Now().Equal(Epoch) {
		t.Errorf("expected %v, got %v", Epoch, mock.Now())
	}

	mock.Add(5 * time.Minute)
	if !mock.Now().Equal(Epoch.Add(5 * time.Minute)) {
		t.Errorf("expected %v, got %v", Epoch.Add(5*time.Minute), mock.Now())
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected context to have a deadline")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 5*time.Second {
		t.Errorf("expected deadline within 5s, got %v", remaining)
	}
}

func TestWaitFor_ReturnsOnceTrue(t *testing.T) {
	n := 0
	WaitFor(t, func() bool {
		n++
		return n >= 3
	})
	if n != 3 {
		t.Errorf("expected 3 polls, got %d", n)
	}
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, "a.txt", "hello")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}
}
