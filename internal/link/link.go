package link

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/kstaniek/go-airq-node/internal/metrics"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

// NodeID is the identifier this device transmits on.
const NodeID = 0x135

var (
	ErrInvalidID     = errors.New("link: invalid identifier")
	ErrInvalidLength = errors.New("link: invalid data length")
)

// Link validates outbound application data and hands it to the raw transmit
// capability. It never retries; a full controller is reported to the caller.
type Link struct {
	tx     transport.Transmitter
	self   uint32
	logger *slog.Logger
}

type Option func(*Link)

// WithNodeID overrides the identifier used by SendHeartbeat and SendSample.
func WithNodeID(id uint32) Option { return func(l *Link) { l.self = id } }

func WithLogger(lg *slog.Logger) Option {
	return func(l *Link) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func New(tx transport.Transmitter, opts ...Option) *Link {
	l := &Link{tx: tx, self: NodeID, logger: logging.L()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Send transmits data at id. Identifiers above 0x7FF use extended addressing.
// A nil data slice requests a remote frame; any non-nil slice, even empty,
// produces a data frame.
func (l *Link) Send(id uint32, data []byte) error {
	if len(data) > can.MaxLen {
		metrics.IncTxRejected(metrics.RejectInvalidLength)
		return fmt.Errorf("%w (%d)", ErrInvalidLength, len(data))
	}
	if id > can.CAN_EFF_MASK {
		metrics.IncTxRejected(metrics.RejectInvalidID)
		return fmt.Errorf("%w (0x%X)", ErrInvalidID, id)
	}
	fr := can.Frame{
		ID:       id,
		Extended: id > can.CAN_SFF_MASK,
		RTR:      data == nil,
		Len:      uint8(len(data)),
	}
	copy(fr.Data[:], data)
	if err := l.tx.Transmit(fr); err != nil {
		if errors.Is(err, transport.ErrNoMailbox) {
			metrics.IncTxRejected(metrics.RejectNoMailbox)
		}
		l.logger.Debug("link_tx_failed", "can_id", fmt.Sprintf("0x%X", id), "len", fr.Len, "error", err)
		return fmt.Errorf("link transmit: %w", err)
	}
	metrics.IncTx()
	return nil
}

// SendHeartbeat transmits a zero-length remote frame at the node identifier.
func (l *Link) SendHeartbeat() error {
	if err := l.Send(l.self, nil); err != nil {
		return err
	}
	metrics.IncHeartbeat()
	return nil
}

// SendSample transmits one air-quality reading at the node identifier.
func (l *Link) SendSample(v uint8) error {
	if err := l.Send(l.self, []byte{v}); err != nil {
		return err
	}
	metrics.IncSample()
	return nil
}

// NodeID returns the identifier used for heartbeats and samples.
func (l *Link) NodeID() uint32 { return l.self }
