package serial

import (
	"context"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// NewMailboxes puts n transmit mailboxes in front of the adapter port. All
// port writes go through the single drain goroutine. onFail, if set, is
// called for every frame the port failed to write.
func NewMailboxes(parent context.Context, sp Port, codec Codec, n int, onFail func(error)) *transport.Mailboxes {
	write := func(fr can.Frame) error {
		_, err := sp.Write(codec.Encode(fr))
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSerialWrite)
			logging.L().Error("serial_write_error", "error", err)
			if onFail != nil {
				onFail(err)
			}
		},
		OnFull: func() error {
			metrics.IncError(metrics.ErrMailboxFull)
			return transport.ErrNoMailbox
		},
	}
	return transport.NewMailboxes(parent, n, write, hooks)
}
