package hwline

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LED is a status indicator output.
type LED interface {
	Set(on bool) error
}

// PinLED is an active-high LED on a host GPIO pin.
type PinLED struct {
	pin gpio.PinOut
}

// OpenLED claims the named pin and switches the LED off.
func OpenLED(name string) (*PinLED, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
	}
	return newPinLED(p)
}

func newPinLED(p gpio.PinOut) (*PinLED, error) {
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("led pin %s: %w", p.Name(), err)
	}
	return &PinLED{pin: p}, nil
}

func (l *PinLED) Set(on bool) error { return l.pin.Out(gpio.Level(on)) }

// SimLED records the LED level.
type SimLED struct {
	mu      sync.Mutex
	on      bool
	changes int
}

func (l *SimLED) Set(on bool) error {
	l.mu.Lock()
	if l.on != on {
		l.changes++
	}
	l.on = on
	l.mu.Unlock()
	return nil
}

func (l *SimLED) On() bool { l.mu.Lock(); defer l.mu.Unlock(); return l.on }

// Changes counts level transitions.
func (l *SimLED) Changes() int { l.mu.Lock(); defer l.mu.Unlock(); return l.changes }

var (
	_ LED = (*PinLED)(nil)
	_ LED = (*SimLED)(nil)
)
