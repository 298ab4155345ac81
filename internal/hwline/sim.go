package hwline

import (
	"sync"
	"time"
)

// Sim is an in-memory set of transceiver lines for boards without GPIO and for
// tests. SetError plays the role of the transceiver driving the error/wake line
// and produces an edge for WaitForEdge.
type Sim struct {
	mu      sync.Mutex
	standby bool
	enable  bool
	wake    bool
	errLine bool
	toggles int
	edges   chan struct{}
}

// Levels is a point-in-time copy of the simulated lines.
type Levels struct {
	Standby     bool
	Enable      bool
	Wake        bool
	Error       bool
	WakeToggles int
}

func NewSim() *Sim { return &Sim{edges: make(chan struct{}, 1)} }

func (s *Sim) SetStandbyLine(v bool) error { s.mu.Lock(); s.standby = v; s.mu.Unlock(); return nil }
func (s *Sim) SetEnableLine(v bool) error  { s.mu.Lock(); s.enable = v; s.mu.Unlock(); return nil }
func (s *Sim) ReadErrorLine() bool         { s.mu.Lock(); defer s.mu.Unlock(); return s.errLine }

func (s *Sim) ToggleWakeLine() error {
	s.mu.Lock()
	s.wake = !s.wake
	s.toggles++
	s.mu.Unlock()
	return nil
}

// SetError drives the error/wake line. Asserting it signals an edge.
func (s *Sim) SetError(asserted bool) {
	s.mu.Lock()
	changed := s.errLine != asserted
	s.errLine = asserted
	s.mu.Unlock()
	if changed && asserted {
		select {
		case s.edges <- struct{}{}:
		default:
		}
	}
}

// WaitForEdge blocks until the error line is asserted or timeout elapses.
func (s *Sim) WaitForEdge(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.edges:
		return true
	case <-t.C:
		return false
	}
}

func (s *Sim) Levels() Levels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Levels{Standby: s.standby, Enable: s.enable, Wake: s.wake, Error: s.errLine, WakeToggles: s.toggles}
}

func (s *Sim) Close() error { return nil }
