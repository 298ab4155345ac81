package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-airq-node/internal/bsp"
	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// busISR is the part of the board the bus backends raise interrupts on.
type busISR interface {
	RxISR(can.Frame)
	TxFailedISR(error)
}

var _ busISR = (*bsp.Board)(nil)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// initBackend opens the selected backend, starts its RX loop and returns the
// mailbox transmitter and a cleanup func.
func initBackend(ctx context.Context, cfg *appConfig, isr busISR, l *slog.Logger, wg *sync.WaitGroup) (transport.Transmitter, func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, isr, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, isr, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use serial|socketcan)", cfg.backend)
	}
}

// nextBackoff doubles d up to rxBackoffMax.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > rxBackoffMax {
		d = rxBackoffMax
	}
	return d
}
