package main

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/serial"
	"github.com/kstaniek/go-airq-node/internal/socketcan"
)

// recISR records what a backend raised.
type recISR struct {
	rx    chan can.Frame
	mu    sync.Mutex
	fails []error
}

func newRecISR() *recISR { return &recISR{rx: make(chan can.Frame, 16)} }

func (r *recISR) RxISR(fr can.Frame) { r.rx <- fr }
func (r *recISR) TxFailedISR(err error) {
	r.mu.Lock()
	r.fails = append(r.fails, err)
	r.mu.Unlock()
}
func (r *recISR) failures() int { r.mu.Lock(); defer r.mu.Unlock(); return len(r.fails) }

// fakeSerialPort implements serial.Port for tests.
type fakeSerialPort struct {
	reads    [][]byte
	idx      int
	writeErr error
	mu       sync.Mutex
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.reads) {
		// read timeout with nothing to deliver
		time.Sleep(10 * time.Millisecond)
		return 0, io.EOF
	}
	n := copy(p, f.reads[f.idx])
	f.idx++
	return n, nil
}
func (f *fakeSerialPort) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}
func (f *fakeSerialPort) Close() error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// serialRxWire builds a received adapter frame: 2D D4 len can_id(4) payload sum.
func serialRxWire(fr can.Frame) []byte {
	data := make([]byte, 4+fr.Len)
	binary.BigEndian.PutUint32(data[:4], fr.RawID())
	copy(data[4:], fr.Payload())
	out := []byte{0x2D, 0xD4, byte(len(data) + 1)}
	sum := out[2] + 0x2D
	for _, b := range data {
		sum += b
	}
	out = append(out, data...)
	return append(out, sum)
}

func TestInitSerialBackendBasic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frame := can.Frame{ID: 0x50, Len: 2, Data: [8]byte{0xAA, 0xBB}}
	openSerialPort = func(name string, baud int, to time.Duration) (serial.Port, error) {
		return &fakeSerialPort{reads: [][]byte{serialRxWire(frame)}}, nil
	}
	defer func() { openSerialPort = serial.Open }()

	isr := newRecISR()
	cfg := &appConfig{backend: "serial", serialDev: "fake", baud: 115200, serialReadTO: 50 * time.Millisecond, mailboxes: 3}
	var wg sync.WaitGroup
	tx, cleanup, err := initBackend(ctx, cfg, isr, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initBackend: %v", err)
	}
	defer func() { cancel(); cleanup(); wg.Wait() }()

	select {
	case fr := <-isr.rx:
		if fr != frame {
			t.Fatalf("unexpected frame: %+v", fr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
	if err := tx.Transmit(can.Frame{ID: 0x135, Len: 1}); err != nil {
		t.Fatalf("transmit: %v", err)
	}
}

func TestSerialBackendWriteFailureRaisesTxFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	openSerialPort = func(name string, baud int, to time.Duration) (serial.Port, error) {
		return &fakeSerialPort{writeErr: errors.New("usb gone")}, nil
	}
	defer func() { openSerialPort = serial.Open }()

	isr := newRecISR()
	cfg := &appConfig{backend: "serial", serialDev: "fake", baud: 115200, serialReadTO: 50 * time.Millisecond, mailboxes: 3}
	var wg sync.WaitGroup
	tx, cleanup, err := initSerialBackend(ctx, cfg, isr, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSerialBackend: %v", err)
	}
	defer func() { cancel(); cleanup(); wg.Wait() }()

	if err := tx.Transmit(can.Frame{ID: 0x135}); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for isr.failures() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("write failure not reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInitBackendUnknown(t *testing.T) {
	var wg sync.WaitGroup
	if _, cleanup, err := initBackend(context.Background(), &appConfig{backend: "x"}, newRecISR(), testLogger(), &wg); err == nil {
		t.Fatal("expected error")
	} else {
		cleanup()
	}
}

// ---- SocketCAN backend ----

type fakeSocketDev struct {
	mu       sync.Mutex
	frames   []can.Frame
	idx      int
	errAfter bool
}

func (d *fakeSocketDev) ReadFrame(fr *can.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.idx < len(d.frames) {
		*fr = d.frames[d.idx]
		d.idx++
		return nil
	}
	if d.errAfter {
		return io.ErrUnexpectedEOF
	}
	time.Sleep(10 * time.Millisecond)
	return socketcan.ErrErrorFrame
}
func (d *fakeSocketDev) WriteFrame(fr can.Frame) error { return nil }
func (d *fakeSocketDev) Close() error                  { return nil }

func TestInitSocketCANBackendBasic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frame := can.Frame{ID: 0x1ABCDEF, Extended: true, Len: 3, Data: [8]byte{1, 2, 3}}
	prev := openSocketCANDevice
	openSocketCANDevice = func(iface string) (socketcan.Dev, error) {
		return &fakeSocketDev{frames: []can.Frame{frame}, errAfter: true}, nil
	}
	defer func() { openSocketCANDevice = prev }()
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = time.Sleep }()

	before := metrics.Snap().Errors
	isr := newRecISR()
	cfg := &appConfig{backend: "socketcan", canIf: "vcan0", mailboxes: 3}
	var wg sync.WaitGroup
	tx, cleanup, err := initBackend(ctx, cfg, isr, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initBackend: %v", err)
	}
	defer func() { cancel(); cleanup(); wg.Wait() }()

	select {
	case fr := <-isr.rx:
		if fr != frame {
			t.Fatalf("unexpected frame: %+v", fr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for socketcan frame")
	}
	if err := tx.Transmit(frame); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for metrics.Snap().Errors == before {
		if time.Now().After(deadline) {
			t.Fatal("expected read error to be counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSocketCANErrorFramesAreNotTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prev := openSocketCANDevice
	openSocketCANDevice = func(iface string) (socketcan.Dev, error) { return &fakeSocketDev{}, nil }
	defer func() { openSocketCANDevice = prev }()

	isr := newRecISR()
	var wg sync.WaitGroup
	_, cleanup, err := initSocketCANBackend(ctx, &appConfig{canIf: "vcan0", mailboxes: 1}, isr, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSocketCANBackend: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	cancel()
	cleanup()
	wg.Wait()
	if len(isr.rx) != 0 {
		t.Fatalf("error frames must not reach the board")
	}
}
