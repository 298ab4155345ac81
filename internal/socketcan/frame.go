package socketcan

import (
	"encoding/binary"
	"errors"

	"github.com/kstaniek/go-airq-node/internal/can"
)

// frameSize is sizeof(struct can_frame).
const frameSize = 16

// ErrErrorFrame marks a controller error frame (CAN_ERR_FLAG set).
var ErrErrorFrame = errors.New("socketcan: error frame")

// struct can_frame (linux/can.h), host byte order (little endian on the
// supported targets):
//
//	can_id  u32  [0:4]  EFF/RTR/ERR flags in the top bits
//	len     u8   [4]
//	pad     3B   [5:8]
//	data    [8]  [8:16]
func pack(fr can.Frame, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], fr.RawID())
	buf[4] = fr.Len
	if !fr.RTR {
		copy(buf[8:], fr.Data[:fr.Len])
	}
}

func unpack(buf []byte, fr *can.Frame) error {
	raw := binary.LittleEndian.Uint32(buf[0:4])
	if raw&can.CAN_ERR_FLAG != 0 {
		return ErrErrorFrame
	}
	dlc := buf[4]
	if dlc > can.MaxLen {
		dlc = can.MaxLen
	}
	*fr = can.FromRawID(raw)
	fr.Len = dlc
	if !fr.RTR {
		copy(fr.Data[:], buf[8:8+int(dlc)])
	}
	return nil
}
