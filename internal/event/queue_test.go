package event

import (
	"errors"
	"testing"

	"github.com/kstaniek/go-airq-node/internal/can"
)

func sample(v uint32) Event { return WithValue(TypeSensor, SubtypeSample, v) }

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := uint32(0); i < 3; i++ {
		if err := q.Push(sample(i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := uint32(0); i < 3; i++ {
		ev, ok := q.Pop()
		if !ok || ev.Payload.Value != i {
			t.Fatalf("pop %d: got %+v ok=%v", i, ev, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueWrapAround(t *testing.T) {
	q := NewQueue(3)
	next := uint32(0)
	want := uint32(0)
	// keep the ring partially full while head walks around it several times
	for round := 0; round < 10; round++ {
		for q.Len() < 2 {
			if err := q.Push(sample(next)); err != nil {
				t.Fatalf("push: %v", err)
			}
			next++
		}
		ev, ok := q.Pop()
		if !ok || ev.Payload.Value != want {
			t.Fatalf("round %d: got %d want %d", round, ev.Payload.Value, want)
		}
		want++
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2)
	_ = q.Push(sample(1))
	_ = q.Push(sample(2))
	if !q.Full() {
		t.Fatalf("expected full")
	}
	if err := q.Push(sample(3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("failed push changed length: %d", q.Len())
	}
	ev, _ := q.Pop()
	if ev.Payload.Value != 1 {
		t.Fatalf("failed push disturbed order: %d", ev.Payload.Value)
	}
}

func TestQueueCopiesByValue(t *testing.T) {
	q := NewQueue(2)
	fr := can.Frame{ID: 0x50, Len: 1}
	fr.Data[0] = 0xAA
	ev := WithFrame(TypeCAN, SubtypeRx, fr)
	_ = q.Push(ev)
	// producer reuses its storage right away
	ev.Payload.Frame.Data[0] = 0x00
	got, _ := q.Pop()
	if got.Payload.Frame.Data[0] != 0xAA {
		t.Fatalf("queued event aliased producer storage")
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	if c := NewQueue(0).Cap(); c != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, c)
	}
}

func TestEventString(t *testing.T) {
	if s := New(TypeTransceiver, SubtypeStandby).String(); s != "transceiver/standby" {
		t.Fatalf("String()=%q", s)
	}
}
