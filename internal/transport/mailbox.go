package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-airq-node/internal/can"
)

// DefaultMailboxes matches the three transmit mailboxes of a bxCAN controller.
const DefaultMailboxes = 3

var (
	// ErrNoMailbox is returned when every transmit mailbox is occupied.
	ErrNoMailbox = errors.New("transport: no free tx mailbox")
	// ErrClosed is returned by Transmit after Close.
	ErrClosed = errors.New("transport: mailboxes closed")
)

// Mailboxes emulates a controller's transmit mailboxes in front of a device
// writer. Transmit never blocks: a frame either takes a free slot or fails with
// ErrNoMailbox (or whatever OnFull returns). A single goroutine drains the
// slots into the device, so device writes are never concurrent. A mailbox stays
// occupied until the device write of its frame returns, so at most n frames are
// accepted and not yet written.
//
// Life-cycle:
//
//	m := NewMailboxes(ctx, 3, writeFn, hooks)
//	m.Transmit(frame)
//	m.Close()
type Mailboxes struct {
	mu     sync.Mutex
	slots  chan can.Frame
	free   chan struct{} // one token per idle mailbox
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	write  func(can.Frame) error
	hooks  Hooks
	closed atomic.Bool
}

// Hooks customize Mailboxes behavior.
type Hooks struct {
	// OnError is called when write fails (frame lost on the wire side).
	OnError func(error)
	// OnSent is called after a successful write.
	OnSent func()
	// OnFull is called when no slot is free; its error is returned from
	// Transmit. If nil, Transmit returns ErrNoMailbox.
	OnFull func() error
}

// NewMailboxes starts the drain goroutine for n slots (DefaultMailboxes if n <= 0).
func NewMailboxes(parent context.Context, n int, write func(can.Frame) error, hooks Hooks) *Mailboxes {
	if n <= 0 {
		n = DefaultMailboxes
	}
	ctx, cancel := context.WithCancel(parent)
	m := &Mailboxes{
		slots:  make(chan can.Frame, n),
		free:   make(chan struct{}, n),
		ctx:    ctx,
		cancel: cancel,
		write:  write,
		hooks:  hooks,
	}
	for i := 0; i < n; i++ {
		m.free <- struct{}{}
	}
	m.wg.Add(1)
	go m.drain()
	return m
}

func (m *Mailboxes) drain() {
	defer m.wg.Done()
	for {
		select {
		case fr, ok := <-m.slots:
			if !ok {
				return
			}
			err := m.write(fr)
			m.free <- struct{}{}
			if err != nil {
				if m.hooks.OnError != nil {
					m.hooks.OnError(err)
				}
				continue
			}
			if m.hooks.OnSent != nil {
				m.hooks.OnSent()
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// Transmit places fr in a free mailbox.
func (m *Mailboxes) Transmit(fr can.Frame) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return ErrClosed
	}
	select {
	case <-m.free:
		// holding a token, so the send cannot block
		m.slots <- fr
		return nil
	default:
		if m.hooks.OnFull != nil {
			return m.hooks.OnFull()
		}
		return ErrNoMailbox
	}
}

// Pending returns the number of occupied mailboxes, including the one being
// written.
func (m *Mailboxes) Pending() int { return cap(m.free) - len(m.free) }

// Close stops the drain goroutine and waits for it to exit. Frames still in a
// mailbox are abandoned, like an aborted transmit request.
func (m *Mailboxes) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.cancel()
	m.mu.Lock()
	close(m.slots)
	m.mu.Unlock()
	m.wg.Wait()
}
