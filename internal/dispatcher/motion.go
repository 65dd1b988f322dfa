package dispatcher

import "sync"

// MotionState holds the armed flag of the motion to camera rule. A capture
// is requested on the rising edge only; the flag clears when motion stops.
type MotionState struct {
	mu    sync.Mutex
	armed bool
}

// Observe records one motion sample and reports whether it is a rising edge.
func (m *MotionState) Observe(motion bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !motion {
		m.armed = false
		return false
	}
	if m.armed {
		return false
	}
	m.armed = true
	return true
}

func (m *MotionState) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}
