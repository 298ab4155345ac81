package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/serial"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// openSerialPort is a hook for tests.
var openSerialPort = serial.Open

func initSerialBackend(ctx context.Context, cfg *appConfig, isr busISR, l *slog.Logger, wg *sync.WaitGroup) (transport.Transmitter, func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
	codec := serial.Codec{}
	mb := serial.NewMailboxes(ctx, sp, codec, cfg.mailboxes, isr.TxFailedISR)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		acc := bytes.NewBuffer(nil)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				_ = codec.DecodeStream(acc, isr.RxISR)
				if acc.Len() == 0 && acc.Cap() > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					l.Error("serial_device_lost", "error", err)
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // read timeout with no data
				}
				metrics.IncError(metrics.ErrSerialRead)
				l.Warn("serial_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff = nextBackoff(backoff)
			}
		}
	}()
	return mb, func() { _ = sp.Close(); mb.Close() }, nil
}
