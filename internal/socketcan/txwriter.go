package socketcan

import (
	"context"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// Dev is the device surface used by the backend and the mailboxes.
// Implemented by *Device on linux and by fakes in tests.
type Dev interface {
	transport.Receiver
	WriteFrame(can.Frame) error
	Close() error
}

// NewMailboxes puts n transmit mailboxes in front of dev. All device writes go
// through the single drain goroutine. onFail, if set, is called for every
// frame the device failed to write.
func NewMailboxes(parent context.Context, dev Dev, n int, onFail func(error)) *transport.Mailboxes {
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSocketCANWrite)
			logging.L().Error("socketcan_write_error", "error", err)
			if onFail != nil {
				onFail(err)
			}
		},
		OnFull: func() error {
			metrics.IncError(metrics.ErrMailboxFull)
			return transport.ErrNoMailbox
		},
	}
	return transport.NewMailboxes(parent, n, dev.WriteFrame, hooks)
}
