package can

import (
	"errors"
	"fmt"
	"strings"
)

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// MaxLen is the classic CAN payload limit.
const MaxLen = 8

var (
	ErrInvalidID  = errors.New("can: invalid identifier")
	ErrInvalidLen = errors.New("can: invalid data length")
)

// Frame is a classic CAN 2.0 frame (11-bit or 29-bit identifier, 0..8 bytes,
// data or remote request). Only the first Len bytes of Data are valid.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Len      uint8
	Data     [MaxLen]byte
}

// Validate reports whether the identifier fits its addressing mode and the
// length fits a classic frame.
func (f Frame) Validate() error {
	if f.Len > MaxLen {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > CAN_EFF_MASK {
			return ErrInvalidID
		}
	} else if f.ID > CAN_SFF_MASK {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte { return f.Data[:f.Len] }

// RawID returns the identifier with SocketCAN EFF/RTR flags folded in.
func (f Frame) RawID() uint32 {
	id := f.ID
	if f.Extended {
		id = (id & CAN_EFF_MASK) | CAN_EFF_FLAG
	} else {
		id &= CAN_SFF_MASK
	}
	if f.RTR {
		id |= CAN_RTR_FLAG
	}
	return id
}

// FromRawID splits a SocketCAN can_id into identifier and flags. A standard
// id keeps any bits above 11 so that Validate rejects it instead of aliasing
// it onto another identifier.
func FromRawID(raw uint32) Frame {
	return Frame{
		ID:       raw & CAN_EFF_MASK,
		Extended: raw&CAN_EFF_FLAG != 0,
		RTR:      raw&CAN_RTR_FLAG != 0,
	}
}

func (f Frame) String() string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.Len)
	if f.RTR {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, d := range f.Payload() {
		fmt.Fprintf(&b, " %02X", d)
	}
	return b.String()
}
