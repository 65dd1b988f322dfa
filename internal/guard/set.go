package guard

import "github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"

// Set holds one guard per physical resource on the host.
type Set struct {
	guards map[domain.Resource]*Guard
}

// NewSet creates the shared-bus, camera, microphone and motion-input guards.
func NewSet() *Set {
	return &Set{
		guards: map[domain.Resource]*Guard{
			domain.ResourceSharedBus:  New(string(domain.ResourceSharedBus)),
			domain.ResourceCamera:     New(string(domain.ResourceCamera)),
			domain.ResourceMicrophone: New(string(domain.ResourceMicrophone)),
			domain.ResourceMotion:     New(string(domain.ResourceMotion)),
		},
	}
}

// WithMetrics attaches sink to every guard in the set.
func (s *Set) WithMetrics(sink MetricsSink) *Set {
	for _, g := range s.guards {
		g.WithMetrics(sink)
	}
	return s
}

// For returns the guard protecting the resource class reads through, or nil
// for an unknown class.
func (s *Set) For(class domain.SensorClass) *Guard {
	return s.guards[class.Resource()]
}

// Held reports the held flag of every guard keyed by resource name.
func (s *Set) Held() map[string]bool {
	out := make(map[string]bool, len(s.guards))
	for res, g := range s.guards {
		out[string(res)] = g.Held()
	}
	return out
}
