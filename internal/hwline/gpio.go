// Package hwline implements the transceiver line control capability.
//
// GPIO drives real pins through periph.io; Sim keeps the levels in memory.
// Both report bus wake/error edges through WaitForEdge, which the daemon turns
// into wake interrupts.
package hwline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Lines is what the board needs plus edge notification and release.
type Lines interface {
	SetStandbyLine(asserted bool) error
	SetEnableLine(asserted bool) error
	ReadErrorLine() bool
	ToggleWakeLine() error
	WaitForEdge(timeout time.Duration) bool
	Close() error
}

// PinConfig names the header pins, e.g. "GPIO22".
type PinConfig struct {
	Standby string
	Enable  string
	Wake    string
	Error   string
}

// DefaultPins is the wiring used by the reference carrier board.
var DefaultPins = PinConfig{Standby: "GPIO22", Enable: "GPIO23", Wake: "GPIO24", Error: "GPIO25"}

var ErrPinNotFound = errors.New("hwline: pin not found")

// hostInit is swapped in tests.
var hostInit = func() error {
	_, err := host.Init()
	return err
}

// GPIO drives the transceiver through host GPIO pins. The standby input of the
// transceiver is active low (low = Standby); the error/wake output is active
// low and open drain, so the input uses a pull-up and watches falling edges.
type GPIO struct {
	mu      sync.Mutex
	standby gpio.PinIO
	enable  gpio.PinIO
	wake    gpio.PinIO
	errPin  gpio.PinIO
}

// Open initializes the host drivers and claims the configured pins.
func Open(cfg PinConfig) (*GPIO, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pins := make([]gpio.PinIO, 4)
	for i, name := range []string{cfg.Standby, cfg.Enable, cfg.Wake, cfg.Error} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
		}
		pins[i] = p
	}
	return newGPIO(pins[0], pins[1], pins[2], pins[3])
}

func newGPIO(standby, enable, wake, errPin gpio.PinIO) (*GPIO, error) {
	g := &GPIO{standby: standby, enable: enable, wake: wake, errPin: errPin}
	if err := g.wake.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("wake pin %s: %w", wake.Name(), err)
	}
	if err := g.errPin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("error pin %s: %w", errPin.Name(), err)
	}
	return g, nil
}

func (g *GPIO) SetStandbyLine(asserted bool) error {
	// active low
	return g.standby.Out(gpio.Level(!asserted))
}

func (g *GPIO) SetEnableLine(asserted bool) error {
	return g.enable.Out(gpio.Level(asserted))
}

// ReadErrorLine is true while the transceiver pulls the line low.
func (g *GPIO) ReadErrorLine() bool { return g.errPin.Read() == gpio.Low }

func (g *GPIO) ToggleWakeLine() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wake.Out(!g.wake.Read())
}

func (g *GPIO) WaitForEdge(timeout time.Duration) bool { return g.errPin.WaitForEdge(timeout) }

// Close releases the edge detector and leaves the outputs as they are, so the
// transceiver keeps its last power state.
func (g *GPIO) Close() error { return g.errPin.Halt() }

var (
	_ Lines = (*GPIO)(nil)
	_ Lines = (*Sim)(nil)
)
