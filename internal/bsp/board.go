// Package bsp owns the board state shared between interrupt handlers and the
// main loop: the event queue, the bus timeout supervisor and the transceiver
// power controller, all guarded by one interrupt mask.
//
// Handlers enter through the *ISR methods, which run under Mask.Interrupt. The
// main loop uses a critical.Context from Thread and blocks in Pend.
package bsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/critical"
	"github.com/kstaniek/go-airq-node/internal/event"
	"github.com/kstaniek/go-airq-node/internal/link"
	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/supervisor"
	"github.com/kstaniek/go-airq-node/internal/transceiver"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// Config sizes the board. Zero fields take package defaults.
type Config struct {
	QueueCapacity int
	Supervisor    supervisor.Config
	NodeID        uint32
}

type Board struct {
	mask   *critical.Mask
	queue  *event.Queue
	ready  chan struct{}
	trx    *transceiver.Controller
	sup    *supervisor.Supervisor
	link   *link.Link
	logger *slog.Logger
}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// New builds a board with the transceiver in Standby and the timeout armed.
func New(cfg Config, lines transceiver.Lines, tx transport.Transmitter, opts ...Option) (*Board, error) {
	if lines == nil || tx == nil {
		return nil, errors.New("bsp: lines and transmitter are required")
	}
	b := &Board{
		mask:   critical.New(),
		queue:  event.NewQueue(cfg.QueueCapacity),
		ready:  make(chan struct{}, 1),
		logger: logging.Component("bsp"),
	}
	for _, o := range opts {
		o(b)
	}
	trx, err := transceiver.New(lines, b.logger)
	if err != nil {
		return nil, fmt.Errorf("bsp: %w", err)
	}
	b.trx = trx
	b.sup = supervisor.New(cfg.Supervisor, nil)
	var lopts []link.Option
	if cfg.NodeID != 0 {
		lopts = append(lopts, link.WithNodeID(cfg.NodeID))
	}
	lopts = append(lopts, link.WithLogger(b.logger))
	b.link = link.New(tx, lopts...)
	return b, nil
}

// Thread returns a main-loop context bound to the board's mask.
func (b *Board) Thread(name string) *critical.Context { return b.mask.Thread(name) }

// Mask exposes the interrupt mask for callers that raise their own handlers.
func (b *Board) Mask() *critical.Mask { return b.mask }

// Link returns the outbound frame link.
func (b *Board) Link() *link.Link { return b.link }

// Start wakes the peer and powers the transceiver up with a fresh timeout
// window.
func (b *Board) Start(c *critical.Context) error {
	var err error
	c.Do(func() {
		if err = b.trx.Start(); err != nil {
			return
		}
		b.sup.Reset()
	})
	return err
}

// Push queues ev from any context.
func (b *Board) Push(c *critical.Context, ev event.Event) error {
	saved := c.Enter()
	err := b.queue.Push(ev)
	depth := b.queue.Len()
	c.Exit(saved)
	if err != nil {
		metrics.IncQueueOverflow()
		metrics.IncError(metrics.ErrQueueFull)
		b.logger.Warn("event_dropped", "event", ev.String(), "error", err)
		return err
	}
	metrics.SetQueueDepth(depth)
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryPend pops the oldest event if there is one.
func (b *Board) TryPend(c *critical.Context) (event.Event, bool) {
	saved := c.Enter()
	ev, ok := b.queue.Pop()
	depth := b.queue.Len()
	c.Exit(saved)
	if ok {
		metrics.SetQueueDepth(depth)
		metrics.IncDispatched()
	}
	return ev, ok
}

// Pend blocks until an event is available and returns it. The emptiness check
// and the pop share the mask used by Push, and Push signals after appending,
// so an event pushed between the check and the wait is never missed.
// Pend is meant for a single consumer.
func (b *Board) Pend(ctx context.Context, c *critical.Context) (event.Event, error) {
	for {
		if ev, ok := b.TryPend(c); ok {
			return ev, nil
		}
		select {
		case <-b.ready:
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		}
	}
}

// TickISR is the periodic tick handler. It returns how long the tick source
// should pause (non-zero only on the tick that put the transceiver in Standby).
// An expiry while already in Standby changes nothing and reports nothing.
func (b *Board) TickISR() time.Duration {
	var hold time.Duration
	b.mask.Interrupt("tick", func(c *critical.Context) {
		if !b.sup.Tick() || b.trx.State() != transceiver.Active {
			return
		}
		if err := b.trx.EnterStandby(); err != nil {
			// try again after another window of silence
			b.sup.Reset()
			b.logger.Error("transceiver_standby_failed", "error", err)
			return
		}
		metrics.IncStandby()
		b.logger.Info("transceiver_standby", "reason", "bus_timeout", "window", b.sup.Window())
		_ = b.Push(c, event.New(event.TypeTransceiver, event.SubtypeStandby))
		hold = b.sup.Holdoff()
	})
	return hold
}

// RxISR handles one received frame.
func (b *Board) RxISR(fr can.Frame) {
	b.mask.Interrupt("can_rx", func(c *critical.Context) {
		metrics.IncRx()
		b.sup.Observe(fr)
		_ = b.Push(c, event.WithFrame(event.TypeCAN, event.SubtypeRx, fr))
	})
}

// TxFailedISR reports a frame the controller could not put on the wire.
func (b *Board) TxFailedISR(err error) {
	b.mask.Interrupt("can_tx", func(c *critical.Context) {
		b.logger.Warn("can_tx_failed", "error", err)
		_ = b.Push(c, event.New(event.TypeCAN, event.SubtypeTxFailed))
	})
}

// WakeISR handles an edge on the error/wake line. In Standby an asserted line
// is a bus wake: the transceiver goes Active and the window is re-armed. While
// Active it is a bus fault, which is only reported.
func (b *Board) WakeISR() {
	b.mask.Interrupt("wake", func(c *critical.Context) {
		if !b.trx.ReadError() {
			return
		}
		if b.trx.State() == transceiver.Standby {
			if err := b.trx.EnterActive(); err != nil {
				b.logger.Error("transceiver_wake_failed", "error", err)
				return
			}
			b.sup.Reset()
			metrics.IncWake()
			b.logger.Info("transceiver_wake")
			_ = b.Push(c, event.WithValue(event.TypeTransceiver, event.SubtypeWake, 1))
			return
		}
		metrics.IncBusError()
		b.logger.Warn("transceiver_bus_error")
		_ = b.Push(c, event.WithValue(event.TypeTransceiver, event.SubtypeBusError, 1))
	})
}

// SampleISR queues an air-quality conversion result.
func (b *Board) SampleISR(v uint8) {
	b.mask.Interrupt("adc", func(c *critical.Context) {
		_ = b.Push(c, event.WithValue(event.TypeSensor, event.SubtypeSample, uint32(v)))
	})
}

// HeartbeatISR is the heartbeat timer handler.
func (b *Board) HeartbeatISR() {
	b.mask.Interrupt("heartbeat", func(c *critical.Context) {
		_ = b.Push(c, event.New(event.TypeSystem, event.SubtypeHeartbeat))
	})
}

// State returns the transceiver power state.
func (b *Board) State(c *critical.Context) transceiver.State {
	var s transceiver.State
	c.Do(func() { s = b.trx.State() })
	return s
}

// Remaining returns the ticks left in the bus timeout window.
func (b *Board) Remaining(c *critical.Context) int {
	var n int
	c.Do(func() { n = b.sup.Remaining() })
	return n
}

// QueueLen returns the number of pending events.
func (b *Board) QueueLen(c *critical.Context) int {
	var n int
	c.Do(func() { n = b.queue.Len() })
	return n
}
