package event

import (
	"fmt"

	"github.com/kstaniek/go-airq-node/internal/can"
)

// Type is the event class.
type Type uint8

const (
	TypeNone Type = iota
	TypeCAN
	TypeTransceiver
	TypeSensor
	TypeSystem
)

// Subtype refines Type.
type Subtype uint8

const (
	SubtypeNone Subtype = iota
	// TypeCAN
	SubtypeRx
	SubtypeTxFailed
	// TypeTransceiver
	SubtypeStandby
	SubtypeWake
	SubtypeBusError
	// TypeSensor
	SubtypeSample
	// TypeSystem
	SubtypeHeartbeat
)

// Payload holds event data. Frame is set for bus events, Value for samples and
// line levels.
type Payload struct {
	Frame can.Frame
	Value uint32
}

// Event is a tagged record handed from interrupt context to the main loop.
// It is copied by value into and out of the queue.
type Event struct {
	Type    Type
	Subtype Subtype
	Payload Payload
}

// New builds an event without payload.
func New(t Type, st Subtype) Event { return Event{Type: t, Subtype: st} }

// WithFrame builds an event carrying a CAN frame.
func WithFrame(t Type, st Subtype, fr can.Frame) Event {
	return Event{Type: t, Subtype: st, Payload: Payload{Frame: fr}}
}

// WithValue builds an event carrying a scalar value.
func WithValue(t Type, st Subtype, v uint32) Event {
	return Event{Type: t, Subtype: st, Payload: Payload{Value: v}}
}

var typeNames = map[Type]string{
	TypeNone:        "none",
	TypeCAN:         "can",
	TypeTransceiver: "transceiver",
	TypeSensor:      "sensor",
	TypeSystem:      "system",
}

var subtypeNames = map[Subtype]string{
	SubtypeNone:      "none",
	SubtypeRx:        "rx",
	SubtypeTxFailed:  "tx_failed",
	SubtypeStandby:   "standby",
	SubtypeWake:      "wake",
	SubtypeBusError:  "bus_error",
	SubtypeSample:    "sample",
	SubtypeHeartbeat: "heartbeat",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

func (s Subtype) String() string {
	if n, ok := subtypeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("subtype(%d)", uint8(s))
}

func (e Event) String() string { return e.Type.String() + "/" + e.Subtype.String() }
