package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kstaniek/go-airq-node/internal/bsp"
	"github.com/kstaniek/go-airq-node/internal/metrics"
)

// Interrupt sources. Each runs in its own goroutine and enters the board only
// through the *ISR methods.

// pause waits d or until ctx is done. It reports false on cancellation.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// startTickSource raises the tick interrupt every period and honors the
// holdoff the board asks for after a Standby transition.
func startTickSource(ctx context.Context, b *bsp.Board, period time.Duration, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if hold := b.TickISR(); hold > 0 {
					if !pause(ctx, hold) {
						return
					}
					t.Reset(period)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// edgeWaiter is the edge half of hwline.Lines.
type edgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// startWakeWatcher turns error/wake line edges into wake interrupts. The wait
// is bounded so the goroutine notices shutdown.
func startWakeWatcher(ctx context.Context, b *bsp.Board, lines edgeWaiter, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if lines.WaitForEdge(edgePollInterval) {
				b.WakeISR()
			}
		}
	}()
}

func startHeartbeat(ctx context.Context, b *bsp.Board, every time.Duration, wg *sync.WaitGroup) {
	if every <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				b.HeartbeatISR()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// readFileFn is a hook for tests.
var readFileFn = os.ReadFile

// readSample reads a raw ADC value (as exposed by IIO sysfs, decimal text)
// and scales it from bits to 8 bits.
func readSample(path string, bits int) (uint8, error) {
	raw, err := readFileFn(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if limit := uint64(1)<<bits - 1; v > limit {
		v = limit
	}
	return uint8(v >> (bits - 8)), nil
}

// startSampler plays the conversion-complete interrupt of the air-quality ADC.
func startSampler(ctx context.Context, b *bsp.Board, cfg *appConfig, l *slog.Logger, wg *sync.WaitGroup) {
	if cfg.sampleEvery <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(cfg.sampleEvery)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				v, err := readSample(cfg.samplePath, cfg.sampleBits)
				if err != nil {
					metrics.IncError(metrics.ErrSampleRead)
					l.Warn("sample_read_error", "path", cfg.samplePath, "error", err)
					continue
				}
				b.SampleISR(v)
			case <-ctx.Done():
				return
			}
		}
	}()
}
