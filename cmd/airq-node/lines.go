package main

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-airq-node/internal/hwline"
)

// openLines is a hook for tests.
var openLines = func(cfg *appConfig) (hwline.Lines, error) {
	switch cfg.lines {
	case "gpio":
		g, err := hwline.Open(cfg.pins)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "sim":
		return hwline.NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown lines %q (use gpio|sim)", cfg.lines)
	}
}

func initLines(cfg *appConfig, l *slog.Logger) (hwline.Lines, error) {
	lines, err := openLines(cfg)
	if err != nil {
		return nil, fmt.Errorf("transceiver lines: %w", err)
	}
	if cfg.lines == "gpio" {
		l.Info("gpio_lines_open", "standby", cfg.pins.Standby, "enable", cfg.pins.Enable, "wake", cfg.pins.Wake, "error", cfg.pins.Error)
	} else {
		l.Info("sim_lines_open")
	}
	return lines, nil
}
