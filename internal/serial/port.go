package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the adapter at 8N1. A non-zero readTimeout keeps reads from
// blocking forever so the receive loop can observe shutdown; a read that
// times out returns io.EOF with no data.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	return serial.OpenPort(portConfig(name, baud, readTimeout))
}

func portConfig(name string, baud int, readTimeout time.Duration) *serial.Config {
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
}
