package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/socketcan"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// openSocketCANDevice is a hook for tests.
var openSocketCANDevice = func(iface string) (socketcan.Dev, error) {
	d, err := socketcan.Open(iface)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func initSocketCANBackend(ctx context.Context, cfg *appConfig, isr busISR, l *slog.Logger, wg *sync.WaitGroup) (transport.Transmitter, func(), error) {
	dev, err := openSocketCANDevice(cfg.canIf)
	if err != nil {
		return nil, func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf)
	mb := socketcan.NewMailboxes(ctx, dev, cfg.mailboxes, isr.TxFailedISR)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var fr can.Frame
			if err := dev.ReadFrame(&fr); err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, socketcan.ErrErrorFrame) {
					l.Debug("socketcan_error_frame")
					continue
				}
				metrics.IncError(metrics.ErrSocketCANRead)
				l.Warn("socketcan_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff = nextBackoff(backoff)
				continue
			}
			isr.RxISR(fr)
			backoff = rxBackoffMin
		}
	}()
	return mb, func() { _ = dev.Close(); mb.Close() }, nil
}
