// Command airq-node runs the air-quality CAN node: it keeps the transceiver
// powered while the control unit talks, puts it in Standby when the bus goes
// quiet, and publishes samples and heartbeats on its own identifier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/kstaniek/go-airq-node/internal/bsp"
	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/supervisor"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("airq-node %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	lines, err := initLines(cfg, l)
	if err != nil {
		l.Error("lines_init_error", "error", err)
		return
	}
	defer func() { _ = lines.Close() }()
	leds, err := initLEDs(cfg, l)
	if err != nil {
		l.Error("led_init_error", "error", err)
		return
	}

	// The board transmits only from the app loop, which starts after the
	// backend below has replaced tx.
	var tx transport.Transmitter = transport.Func(func(can.Frame) error { return transport.ErrNoMailbox })
	board, err := bsp.New(bsp.Config{
		QueueCapacity: cfg.queueCap,
		Supervisor:    supervisor.Config{Window: cfg.window, Holdoff: cfg.holdoff},
		NodeID:        uint32(cfg.nodeID),
	}, lines, transport.Func(func(fr can.Frame) error { return tx.Transmit(fr) }), bsp.WithLogger(l))
	if err != nil {
		l.Error("board_init_error", "error", err)
		return
	}

	tx, cleanup, err := initBackend(ctx, cfg, board, l, &wg)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return
	}

	var started atomic.Bool
	metrics.SetReadinessFunc(func() bool { return started.Load() && ctx.Err() == nil })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	if cfg.mdnsEnable {
		stopMDNS, err := startMDNS(ctx, cfg)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			l.Info("mdns_started", "service", mdnsServiceType, "name", mdnsInstance(cfg))
			defer stopMDNS()
		}
	}

	startTickSource(ctx, board, cfg.tick, &wg)
	startWakeWatcher(ctx, board, lines, &wg)
	startHeartbeat(ctx, board, cfg.heartbeatEvery, &wg)
	startSampler(ctx, board, cfg, l, &wg)

	appDone := make(chan error, 1)
	a := newApp(board, l, leds)
	go func() { appDone <- a.run(ctx, func() { started.Store(true) }) }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case err := <-appDone:
		if err != nil {
			l.Error("app_error", "error", err)
		}
	}
	cancel()
	cleanup()
	wg.Wait()
}
