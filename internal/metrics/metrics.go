package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-airq-node/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	CANRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_rx_frames_total",
		Help: "Total CAN frames received from the bus backend.",
	})
	CANTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_tx_frames_total",
		Help: "Total CAN frames handed to a transmit mailbox.",
	})
	PeerFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peer_frames_total",
		Help: "Total frames from the control unit that re-armed the bus timeout.",
	})
	TxRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "can_tx_rejected_total",
		Help: "Outbound frames rejected before transmission, by reason.",
	}, []string{"reason"})
	StandbyTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transceiver_standby_transitions_total",
		Help: "Total Active to Standby transitions caused by bus silence.",
	})
	WakeEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transceiver_wake_total",
		Help: "Total Standby to Active transitions caused by the wake line.",
	})
	BusErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transceiver_bus_errors_total",
		Help: "Total error line assertions observed while Active.",
	})
	TransceiverActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transceiver_active",
		Help: "1 when the transceiver is Active, 0 in Standby.",
	})
	TimeoutRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bus_timeout_remaining_ticks",
		Help: "Ticks left before the transceiver is put in Standby.",
	})
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_queue_depth",
		Help: "Events waiting for the main loop.",
	})
	QueueOverflow = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_queue_overflow_total",
		Help: "Events dropped because the queue was full.",
	})
	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_dispatched_total",
		Help: "Events handed to the main loop.",
	})
	SamplesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "air_quality_samples_sent_total",
		Help: "Air-quality samples transmitted.",
	})
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartbeats_sent_total",
		Help: "Heartbeat frames transmitted.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed adapter frames (bad length, checksum).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSerialWrite    = "serial_write"
	ErrSerialRead     = "serial_read"
	ErrSocketCANWrite = "socketcan_write"
	ErrSocketCANRead  = "socketcan_read"
	ErrMailboxFull    = "tx_mailbox_full"
	ErrLineWrite      = "line_write"
	ErrQueueFull      = "event_queue_full"
	ErrSampleRead     = "sample_read"
)

// Rejection reasons for TxRejected.
const (
	RejectInvalidID     = "invalid_id"
	RejectInvalidLength = "invalid_length"
	RejectNoMailbox     = "no_mailbox"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localRx        uint64
	localTx        uint64
	localPeer      uint64
	localRejected  uint64
	localStandby   uint64
	localWake      uint64
	localBusErr    uint64
	localActive    uint64
	localRemaining uint64
	localDepth     uint64
	localOverflow  uint64
	localDispatch  uint64
	localSamples   uint64
	localHeartbeat uint64
	localErrors    uint64
	localMalformed uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Rx         uint64
	Tx         uint64
	Peer       uint64
	Rejected   uint64 // sum across rejection reasons
	Standby    uint64
	Wake       uint64
	BusErrors  uint64
	Active     bool
	Remaining  uint64
	QueueDepth uint64
	Overflow   uint64
	Dispatched uint64
	Samples    uint64
	Heartbeats uint64
	Errors     uint64 // sum across error labels
	Malformed  uint64
}

func Snap() Snapshot {
	return Snapshot{
		Rx:         atomic.LoadUint64(&localRx),
		Tx:         atomic.LoadUint64(&localTx),
		Peer:       atomic.LoadUint64(&localPeer),
		Rejected:   atomic.LoadUint64(&localRejected),
		Standby:    atomic.LoadUint64(&localStandby),
		Wake:       atomic.LoadUint64(&localWake),
		BusErrors:  atomic.LoadUint64(&localBusErr),
		Active:     atomic.LoadUint64(&localActive) == 1,
		Remaining:  atomic.LoadUint64(&localRemaining),
		QueueDepth: atomic.LoadUint64(&localDepth),
		Overflow:   atomic.LoadUint64(&localOverflow),
		Dispatched: atomic.LoadUint64(&localDispatch),
		Samples:    atomic.LoadUint64(&localSamples),
		Heartbeats: atomic.LoadUint64(&localHeartbeat),
		Errors:     atomic.LoadUint64(&localErrors),
		Malformed:  atomic.LoadUint64(&localMalformed),
	}
}

// Wrapper helpers to keep call sites simple.
func IncRx() {
	CANRxFrames.Inc()
	atomic.AddUint64(&localRx, 1)
}

func IncTx() {
	CANTxFrames.Inc()
	atomic.AddUint64(&localTx, 1)
}

func IncPeer() {
	PeerFrames.Inc()
	atomic.AddUint64(&localPeer, 1)
}

// IncTxRejected counts a frame the link refused to transmit.
func IncTxRejected(reason string) {
	TxRejected.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localRejected, 1)
}

func IncStandby() {
	StandbyTransitions.Inc()
	atomic.AddUint64(&localStandby, 1)
}

func IncWake() {
	WakeEvents.Inc()
	atomic.AddUint64(&localWake, 1)
}

func IncBusError() {
	BusErrors.Inc()
	atomic.AddUint64(&localBusErr, 1)
}

// SetActive mirrors the transceiver power state.
func SetActive(active bool) {
	var v uint64
	if active {
		v = 1
	}
	TransceiverActive.Set(float64(v))
	atomic.StoreUint64(&localActive, v)
}

func SetTimeoutRemaining(n int) {
	TimeoutRemaining.Set(float64(n))
	atomic.StoreUint64(&localRemaining, uint64(n))
}

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
	atomic.StoreUint64(&localDepth, uint64(n))
}

func IncQueueOverflow() {
	QueueOverflow.Inc()
	atomic.AddUint64(&localOverflow, 1)
}

func IncDispatched() {
	EventsDispatched.Inc()
	atomic.AddUint64(&localDispatch, 1)
}

func IncSample() {
	SamplesSent.Inc()
	atomic.AddUint64(&localSamples, 1)
}

func IncHeartbeat() {
	HeartbeatsSent.Inc()
	atomic.AddUint64(&localHeartbeat, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register label series so they are exported as zero before the first event.
	for _, lbl := range []string{
		ErrSerialWrite, ErrSerialRead,
		ErrSocketCANWrite, ErrSocketCANRead,
		ErrMailboxFull, ErrLineWrite, ErrQueueFull, ErrSampleRead,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, r := range []string{RejectInvalidID, RejectInvalidLength, RejectNoMailbox} {
		TxRejected.WithLabelValues(r).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // not set yet: report ready so the endpoint doesn't flap during startup
		return true
	}
	return fn()
}
