package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-airq-node/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"can_rx", snap.Rx,
					"can_tx", snap.Tx,
					"peer_rx", snap.Peer,
					"tx_rejected", snap.Rejected,
					"standby", snap.Standby,
					"wake", snap.Wake,
					"bus_errors", snap.BusErrors,
					"active", snap.Active,
					"timeout_remaining", snap.Remaining,
					"queue_depth", snap.QueueDepth,
					"queue_overflow", snap.Overflow,
					"dispatched", snap.Dispatched,
					"samples", snap.Samples,
					"heartbeats", snap.Heartbeats,
					"errors", snap.Errors,
					"malformed", snap.Malformed,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
