// Package supervisor puts the transceiver in Standby when the control unit
// goes quiet.
//
// The counter starts at the full window and loses one per tick. The tick that
// brings it to zero fires the Standby transition once; the supervisor then
// stays expired until a frame from the peer (or a wake) re-arms it. Frames
// from any other identifier are ignored.
package supervisor

import (
	"time"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/metrics"
)

const (
	// PeerID is the control unit whose frames keep the bus alive.
	PeerID = 0x50
	// DefaultWindow is 1 s at a 1 ms tick.
	DefaultWindow = 1000
	// DefaultHoldoff pauses the tick source after expiry.
	DefaultHoldoff = 20 * time.Millisecond
)

// Config holds the supervisor parameters; zero fields take the defaults.
// Peer is a pointer because 0x000 is a valid identifier; nil means PeerID.
type Config struct {
	Window  int
	Peer    *uint32
	Holdoff time.Duration
}

// Supervisor is not synchronized; the board calls it with the interrupt mask
// held.
type Supervisor struct {
	window    int
	peer      uint32
	holdoff   time.Duration
	remaining int
	expired   bool
	onExpire  func()
}

// New returns an armed supervisor. onExpire runs once per expiry, inside Tick.
func New(cfg Config, onExpire func()) *Supervisor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	peer := uint32(PeerID)
	if cfg.Peer != nil {
		peer = *cfg.Peer
	}
	if cfg.Holdoff <= 0 {
		cfg.Holdoff = DefaultHoldoff
	}
	s := &Supervisor{
		window:   cfg.Window,
		peer:     peer,
		holdoff:  cfg.Holdoff,
		onExpire: onExpire,
	}
	s.Reset()
	return s
}

// Tick advances the counter by one tick and reports whether this tick expired
// the window.
func (s *Supervisor) Tick() bool {
	if s.expired {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
		metrics.SetTimeoutRemaining(s.remaining)
	}
	if s.remaining > 0 {
		return false
	}
	s.expired = true
	if s.onExpire != nil {
		s.onExpire()
	}
	return true
}

// Observe re-arms the window when fr comes from the peer. It reports whether
// the frame counted.
func (s *Supervisor) Observe(fr can.Frame) bool {
	if fr.Extended || fr.ID != s.peer {
		return false
	}
	metrics.IncPeer()
	s.Reset()
	return true
}

// Reset re-arms the full window and cancels a pending expiry.
func (s *Supervisor) Reset() {
	s.remaining = s.window
	s.expired = false
	metrics.SetTimeoutRemaining(s.remaining)
}

func (s *Supervisor) Remaining() int         { return s.remaining }
func (s *Supervisor) Expired() bool          { return s.expired }
func (s *Supervisor) Window() int            { return s.window }
func (s *Supervisor) Holdoff() time.Duration { return s.holdoff }
