package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-airq-node/internal/bsp"
	"github.com/kstaniek/go-airq-node/internal/critical"
	"github.com/kstaniek/go-airq-node/internal/event"
	"github.com/kstaniek/go-airq-node/internal/link"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// app is the main loop: it owns the board's thread context and consumes the
// event stream.
type app struct {
	board *bsp.Board
	log   *slog.Logger
	leds  *statusLEDs
}

func newApp(b *bsp.Board, l *slog.Logger, leds *statusLEDs) *app {
	if leds == nil {
		leds = &statusLEDs{log: l}
	}
	return &app{board: b, log: l, leds: leds}
}

// run starts the board and dispatches events until ctx is cancelled.
// started is called once the transceiver is Active.
func (a *app) run(ctx context.Context, started func()) error {
	thread := a.board.Thread("main")
	a.leds.initializing()
	if err := a.board.Start(thread); err != nil {
		a.leds.fault()
		return fmt.Errorf("board start: %w", err)
	}
	a.leds.active()
	a.log.Info("transceiver_active", "node_id", fmt.Sprintf("0x%X", a.board.Link().NodeID()))
	if started != nil {
		started()
	}
	for {
		ev, err := a.board.Pend(ctx, thread)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		a.dispatch(thread, ev)
	}
}

func (a *app) dispatch(c *critical.Context, ev event.Event) {
	l := a.board.Link()
	switch ev.Type {
	case event.TypeSensor:
		if ev.Subtype == event.SubtypeSample {
			a.reportSend("sample", l.SendSample(uint8(ev.Payload.Value)))
		}
	case event.TypeSystem:
		if ev.Subtype == event.SubtypeHeartbeat {
			a.reportSend("heartbeat", l.SendHeartbeat())
		}
	case event.TypeTransceiver:
		switch ev.Subtype {
		case event.SubtypeStandby:
			a.leds.standby()
			a.log.Info("bus_idle", "state", a.board.State(c).String())
		case event.SubtypeWake:
			a.leds.active()
			// announce ourselves as soon as the bus is back
			a.reportSend("heartbeat", l.SendHeartbeat())
		case event.SubtypeBusError:
			a.leds.fault()
			a.log.Warn("bus_fault_reported")
		}
	case event.TypeCAN:
		switch ev.Subtype {
		case event.SubtypeRx:
			a.log.Debug("can_rx", "frame", ev.Payload.Frame.String())
		case event.SubtypeTxFailed:
			a.leds.fault()
			a.log.Warn("can_tx_lost")
		}
	default:
		a.log.Debug("event_ignored", "event", ev.String())
	}
}

// reportSend logs a link failure. Transmit exhaustion is expected under load
// and logged at debug; the link has already counted it.
func (a *app) reportSend(what string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrNoMailbox):
		a.log.Debug("link_send_dropped", "what", what, "error", err)
	case errors.Is(err, link.ErrInvalidID), errors.Is(err, link.ErrInvalidLength):
		a.log.Error("link_send_invalid", "what", what, "error", err)
	default:
		a.log.Warn("link_send_failed", "what", what, "error", err)
	}
}
