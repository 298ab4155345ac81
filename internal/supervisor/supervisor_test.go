package supervisor

import (
	"testing"

	"github.com/kstaniek/go-airq-node/internal/can"
)

func TestExpiresExactlyAtWindow(t *testing.T) {
	fired := 0
	firedAt := 0
	tick := 0
	s := New(Config{}, func() { fired++; firedAt = tick })
	for tick = 1; tick <= 1000; tick++ {
		prev := s.Remaining()
		expired := s.Tick()
		if tick < 1000 {
			if expired || fired != 0 {
				t.Fatalf("standby fired early at tick %d", tick)
			}
			if s.Remaining() != prev-1 {
				t.Fatalf("tick %d: counter %d -> %d, want strict -1", tick, prev, s.Remaining())
			}
		}
	}
	if fired != 1 || firedAt != 1000 {
		t.Fatalf("expected one expiry at tick 1000, got %d at %d", fired, firedAt)
	}
	// further silence does not fire again
	for i := 0; i < 500; i++ {
		if s.Tick() {
			t.Fatalf("expired twice")
		}
	}
	if fired != 1 || !s.Expired() || s.Remaining() != 0 {
		t.Fatalf("unexpected state after expiry: fired=%d expired=%v rem=%d", fired, s.Expired(), s.Remaining())
	}
}

func TestPeerFrameResetsAndCancels(t *testing.T) {
	fired := 0
	s := New(Config{Window: 10}, func() { fired++ })
	for i := 0; i < 9; i++ {
		s.Tick()
	}
	if s.Remaining() != 1 {
		t.Fatalf("expected 1 remaining, got %d", s.Remaining())
	}
	if !s.Observe(can.Frame{ID: PeerID}) {
		t.Fatalf("peer frame not counted")
	}
	if s.Remaining() != 10 {
		t.Fatalf("expected full window after peer frame, got %d", s.Remaining())
	}
	for i := 0; i < 9; i++ {
		if s.Tick() {
			t.Fatalf("cancelled expiry fired")
		}
	}
	if fired != 0 {
		t.Fatalf("expected no expiry, got %d", fired)
	}
}

func TestOtherIdentifiersIgnored(t *testing.T) {
	s := New(Config{Window: 5}, nil)
	s.Tick()
	s.Tick()
	for _, fr := range []can.Frame{
		{ID: 0x135},
		{ID: 0x51},
		{ID: PeerID, Extended: true},
	} {
		if s.Observe(fr) {
			t.Fatalf("frame %v must not re-arm", fr)
		}
	}
	if s.Remaining() != 3 {
		t.Fatalf("expected 3 remaining, got %d", s.Remaining())
	}
}

func TestRearmAfterExpiry(t *testing.T) {
	fired := 0
	s := New(Config{Window: 2}, func() { fired++ })
	s.Tick()
	s.Tick()
	if !s.Expired() {
		t.Fatalf("expected expired")
	}
	s.Observe(can.Frame{ID: PeerID})
	s.Tick()
	s.Tick()
	if fired != 2 {
		t.Fatalf("expected second expiry after re-arm, got %d", fired)
	}
}

func TestDefaults(t *testing.T) {
	s := New(Config{}, nil)
	if s.Window() != DefaultWindow || s.Holdoff() != DefaultHoldoff {
		t.Fatalf("unexpected defaults: %d %v", s.Window(), s.Holdoff())
	}
}

func TestPeerZeroIsConfigurable(t *testing.T) {
	zero := uint32(0)
	s := New(Config{Window: 5, Peer: &zero}, nil)
	s.Tick()
	if s.Observe(can.Frame{ID: PeerID}) {
		t.Fatalf("default peer must not count once overridden")
	}
	if !s.Observe(can.Frame{ID: 0}) || s.Remaining() != 5 {
		t.Fatalf("peer 0x000 did not re-arm, remaining=%d", s.Remaining())
	}
}
