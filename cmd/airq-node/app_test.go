package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kstaniek/go-airq-node/internal/bsp"
	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/event"
	"github.com/kstaniek/go-airq-node/internal/hwline"
	"github.com/kstaniek/go-airq-node/internal/link"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

func waitFrames(t *testing.T, s *frameSink, n int) []can.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := s.sent(); len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d frames, got %d", n, len(s.sent()))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRunAppForwardsSamplesAndHeartbeats(t *testing.T) {
	b, lines, sink := testBoard(t, bsp.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Bool
	done := make(chan error, 1)
	go func() { done <- newApp(b, testLogger(), nil).run(ctx, func() { started.Store(true) }) }()

	b.SampleISR(0x42)
	b.HeartbeatISR()
	got := waitFrames(t, sink, 2)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !started.Load() {
		t.Fatalf("started callback not called")
	}
	if lv := lines.Levels(); lv.Standby || !lv.Enable {
		t.Fatalf("run must leave the transceiver Active, got %+v", lv)
	}
	sample, hb := got[0], got[1]
	if sample.ID != link.NodeID || sample.RTR || sample.Len != 1 || sample.Data[0] != 0x42 {
		t.Fatalf("unexpected sample frame %v", sample)
	}
	if hb.ID != link.NodeID || !hb.RTR || hb.Len != 0 {
		t.Fatalf("unexpected heartbeat frame %v", hb)
	}
}

func TestDispatchWakeAnnounces(t *testing.T) {
	b, _, sink := testBoard(t, bsp.Config{})
	c := b.Thread("test")
	a := newApp(b, testLogger(), nil)
	a.dispatch(c, event.WithValue(event.TypeTransceiver, event.SubtypeWake, 1))
	a.dispatch(c, event.WithFrame(event.TypeCAN, event.SubtypeRx, can.Frame{ID: 0x50}))
	a.dispatch(c, event.New(event.TypeTransceiver, event.SubtypeStandby))
	got := sink.sent()
	if len(got) != 1 || !got[0].RTR {
		t.Fatalf("expected one heartbeat after wake, got %v", got)
	}
}

func TestDispatchSurvivesFullMailboxes(t *testing.T) {
	full := transport.Func(func(can.Frame) error { return transport.ErrNoMailbox })
	b, err := bsp.New(bsp.Config{}, hwline.NewSim(), full, bsp.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("bsp.New: %v", err)
	}
	c := b.Thread("test")
	a := newApp(b, testLogger(), nil)
	// must not panic or block
	a.dispatch(c, event.WithValue(event.TypeSensor, event.SubtypeSample, 1))
	a.dispatch(c, event.New(event.TypeSystem, event.SubtypeHeartbeat))
}
