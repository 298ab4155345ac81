package transport

import "github.com/kstaniek/go-airq-node/internal/can"

// Transmitter is the raw frame transmit capability: enqueue one frame into a
// transmit mailbox or fail immediately.
type Transmitter interface {
	Transmit(can.Frame) error
}

// Receiver delivers frames read from the bus.
type Receiver interface {
	ReadFrame(*can.Frame) error
}

// Func adapts a plain function to Transmitter.
type Func func(can.Frame) error

func (f Func) Transmit(fr can.Frame) error { return f(fr) }

var _ Transmitter = (*Mailboxes)(nil)
