package serial

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-airq-node/internal/can"
)

type recPort struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	fail error
}

func (p *recPort) Read([]byte) (int, error) { return 0, nil }
func (p *recPort) Write(b []byte) (int, error) {
	if p.fail != nil {
		return 0, p.fail
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}
func (p *recPort) Close() error { return nil }

func (p *recPort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

func TestMailboxesWriteEncodedFrames(t *testing.T) {
	p := &recPort{}
	m := NewMailboxes(context.Background(), p, Codec{}, 3, nil)
	defer m.Close()
	fr := can.Frame{ID: 0x135, Len: 1, Data: [8]byte{0x42}}
	if err := m.Transmit(fr); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	want := Codec{}.Encode(fr)
	deadline := time.Now().Add(time.Second)
	for !bytes.Equal(p.written(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("got % X want % X", p.written(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMailboxesReportWriteFailure(t *testing.T) {
	boom := errors.New("usb gone")
	p := &recPort{fail: boom}
	got := make(chan error, 1)
	m := NewMailboxes(context.Background(), p, Codec{}, 3, func(err error) { got <- err })
	defer m.Close()
	_ = m.Transmit(can.Frame{ID: 0x135})
	select {
	case err := <-got:
		if !errors.Is(err, boom) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write failure not reported")
	}
}
