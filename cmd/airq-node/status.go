package main

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-airq-node/internal/hwline"
	"github.com/kstaniek/go-airq-node/internal/metrics"
)

// statusLEDs shows the node state: red while initializing and after a fault,
// green while the transceiver is Active. Either LED may be absent.
type statusLEDs struct {
	red   hwline.LED
	green hwline.LED
	log   *slog.Logger
}

// openLED is a hook for tests.
var openLED = func(name string) (hwline.LED, error) {
	led, err := hwline.OpenLED(name)
	if err != nil {
		return nil, err
	}
	return led, nil
}

func initLEDs(cfg *appConfig, l *slog.Logger) (*statusLEDs, error) {
	s := &statusLEDs{log: l}
	if cfg.lines == "sim" {
		s.red, s.green = &hwline.SimLED{}, &hwline.SimLED{}
		return s, nil
	}
	var err error
	if cfg.ledRed != "" {
		if s.red, err = openLED(cfg.ledRed); err != nil {
			return nil, fmt.Errorf("red led: %w", err)
		}
	}
	if cfg.ledGreen != "" {
		if s.green, err = openLED(cfg.ledGreen); err != nil {
			return nil, fmt.Errorf("green led: %w", err)
		}
	}
	if s.red != nil || s.green != nil {
		l.Info("status_leds_open", "red", cfg.ledRed, "green", cfg.ledGreen)
	}
	return s, nil
}

func (s *statusLEDs) set(led hwline.LED, name string, on bool) {
	if led == nil {
		return
	}
	if err := led.Set(on); err != nil {
		metrics.IncError(metrics.ErrLineWrite)
		s.log.Warn("led_write_error", "led", name, "error", err)
	}
}

func (s *statusLEDs) initializing() { s.set(s.red, "red", true); s.set(s.green, "green", false) }
func (s *statusLEDs) active()       { s.set(s.red, "red", false); s.set(s.green, "green", true) }
func (s *statusLEDs) standby()      { s.set(s.green, "green", false) }
func (s *statusLEDs) fault()        { s.set(s.red, "red", true) }
