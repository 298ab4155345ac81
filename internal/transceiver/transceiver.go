// Package transceiver drives the CAN transceiver power lines.
//
// Active: Standby deasserted, Enable asserted; the transceiver drives and
// receives the bus. Standby: Standby asserted, Enable deasserted; lowest power,
// a bus wake is reported on the error/wake line.
//
// A Controller is not synchronized. Transitions happen inside the interrupt
// mask held by the board.
package transceiver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/kstaniek/go-airq-node/internal/metrics"
)

// Lines is the hardware line control capability.
type Lines interface {
	SetStandbyLine(asserted bool) error
	SetEnableLine(asserted bool) error
	// ReadErrorLine reports true while an error or wake condition is latched.
	ReadErrorLine() bool
	// ToggleWakeLine inverts the wake request output to solicit the peer.
	ToggleWakeLine() error
}

// ErrLine wraps failures of the underlying line driver.
var ErrLine = errors.New("transceiver: line control")

type State uint8

const (
	Standby State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "standby"
}

type Controller struct {
	lines    Lines
	standby  bool
	enable   bool
	errLevel bool
	logger   *slog.Logger
}

// New takes ownership of lines and drives them to Standby, the power-on state
// of the board.
func New(lines Lines, l *slog.Logger) (*Controller, error) {
	if l == nil {
		l = logging.L()
	}
	c := &Controller{lines: lines, logger: l}
	if err := c.EnterStandby(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetStandby drives the Standby line.
func (c *Controller) SetStandby(asserted bool) error {
	if err := c.lines.SetStandbyLine(asserted); err != nil {
		metrics.IncError(metrics.ErrLineWrite)
		return fmt.Errorf("%w: standby: %v", ErrLine, err)
	}
	c.standby = asserted
	c.publish()
	return nil
}

// SetEnable drives the Enable line.
func (c *Controller) SetEnable(asserted bool) error {
	if err := c.lines.SetEnableLine(asserted); err != nil {
		metrics.IncError(metrics.ErrLineWrite)
		return fmt.Errorf("%w: enable: %v", ErrLine, err)
	}
	c.enable = asserted
	c.publish()
	return nil
}

// ReadError samples the error/wake line. It only records the level.
func (c *Controller) ReadError() bool {
	c.errLevel = c.lines.ReadErrorLine()
	return c.errLevel
}

// LastError returns the level seen by the most recent ReadError.
func (c *Controller) LastError() bool { return c.errLevel }

// Wake pulses the wake request line.
func (c *Controller) Wake() error {
	if err := c.lines.ToggleWakeLine(); err != nil {
		metrics.IncError(metrics.ErrLineWrite)
		return fmt.Errorf("%w: wake: %v", ErrLine, err)
	}
	return nil
}

// EnterStandby asserts Standby and drops Enable.
func (c *Controller) EnterStandby() error {
	if err := c.SetStandby(true); err != nil {
		return err
	}
	return c.SetEnable(false)
}

// EnterActive releases Standby and asserts Enable.
func (c *Controller) EnterActive() error {
	if err := c.SetStandby(false); err != nil {
		return err
	}
	return c.SetEnable(true)
}

// Start solicits the peer and powers the transceiver up.
func (c *Controller) Start() error {
	if err := c.Wake(); err != nil {
		return err
	}
	if err := c.EnterActive(); err != nil {
		return err
	}
	c.logger.Info("transceiver_started")
	return nil
}

// State is Active only when both lines are in their Active levels.
func (c *Controller) State() State {
	if !c.standby && c.enable {
		return Active
	}
	return Standby
}

func (c *Controller) publish() { metrics.SetActive(c.State() == Active) }
