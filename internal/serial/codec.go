// Package serial talks to a USB/UART CAN adapter: a framed byte protocol on
// top of a tarm/serial port, with transmit mailboxes in front of the writer.
package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/metrics"
)

const (
	pre0 = 0x2D
	pre1 = 0xD4

	insSend = 2 // INS: CAN send, 29-bit capable id field

	flagExtended = 0x80
	flagRTR      = 0x40
	flagLenMask  = 0x0F
)

type Codec struct{}

// CompactBuffer reclaims consumed prefix capacity when the buffer grows too
// large relative to unread bytes. It returns true if compaction occurred.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	// unread < 25% of capacity; b.Cap counts the consumed prefix too
	if len(data)*4 < b.Cap() {
		clone := make([]byte, len(data))
		copy(clone, data)
		// Reset would keep the old backing array
		*b = *bytes.NewBuffer(clone)
		return true
	}
	return false
}

// envelope wraps body as [2D D4 len+1 body... checksum], where
// checksum = 0x2D + (len+1) + sum(body) mod 256.
func envelope(body []byte) []byte {
	n := len(body)
	out := make([]byte, n+4)
	out[0] = pre0
	out[1] = pre1
	out[2] = byte(n + 1)
	sum := out[2] + pre0
	for i, b := range body {
		out[3+i] = b
		sum += b
	}
	out[3+n] = sum
	return out
}

// Encode builds a send request:
// INS(1) | FLAGS(1) | ID(4, big endian) | PAYLOAD(0..8)
// FLAGS carries the extended and remote bits and the length in the low nibble.
func (Codec) Encode(f can.Frame) []byte {
	flags := f.Len & flagLenMask
	if f.Extended {
		flags |= flagExtended
	}
	if f.RTR {
		flags |= flagRTR
	}
	n := int(f.Len)
	if f.RTR {
		n = 0
	}
	body := make([]byte, 6+n)
	body[0] = insSend
	body[1] = flags
	binary.BigEndian.PutUint32(body[2:6], f.RawID()&^(can.CAN_EFF_FLAG|can.CAN_RTR_FLAG))
	copy(body[6:], f.Data[:n])
	return envelope(body)
}

// DecodeStream consumes complete received frames from in and emits them via
// out. Partial frames are left in the buffer for the next call.
//
// A received frame carries the SocketCAN style can_id (EFF/RTR flags in the
// top bits) followed by the payload:
//
//	2D D4        preamble
//	0D           len = id(4) + payload(8) + checksum(1)
//	80 00 01 35  can_id = 0x135 | EFF
//	DE AD ...    payload (0..8 bytes)
//	AA           checksum = 0x2D + len + sum(bytes after len)
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	const (
		minLn = 4 + 0 + 1
		maxLn = 4 + can.MaxLen + 1
	)
	header := []byte{pre0, pre1}

	for {
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) < 3 {
			return nil
		}

		i := bytes.Index(data, header)
		if i < 0 {
			// keep last byte in case the next read starts with the second preamble byte
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		if len(data) < 4 {
			return nil
		}
		ln := int(data[2])
		if ln < minLn || ln > maxLn {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		req := 3 + ln
		if len(data) < req {
			return nil
		}

		sum := uint(pre0) + uint(data[2])
		for _, b := range data[3 : req-1] {
			sum += uint(b)
		}
		if byte(sum) != data[req-1] {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		f := can.FromRawID(binary.BigEndian.Uint32(data[3:7]))
		payload := data[7 : req-1]
		f.Len = uint8(len(payload))
		copy(f.Data[:], payload)
		if err := f.Validate(); err != nil {
			metrics.IncMalformed()
			in.Next(req)
			continue
		}

		out(f)
		in.Next(req)
	}
}
