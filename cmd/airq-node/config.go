package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-airq-node/internal/can"
	"github.com/kstaniek/go-airq-node/internal/hwline"
	"github.com/kstaniek/go-airq-node/internal/link"
	"github.com/kstaniek/go-airq-node/internal/supervisor"
	"github.com/kstaniek/go-airq-node/internal/transport"
)

type appConfig struct {
	backend         string
	canIf           string
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	tick            time.Duration
	window          int
	holdoff         time.Duration
	queueCap        int
	mailboxes       int
	nodeID          uint
	heartbeatEvery  time.Duration
	sampleEvery     time.Duration
	samplePath      string
	sampleBits      int
	lines           string
	pins            hwline.PinConfig
	ledRed          string
	ledGreen        string
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func defaultConfig() *appConfig {
	return &appConfig{
		backend:        "socketcan",
		canIf:          "can0",
		serialDev:      "/dev/ttyUSB0",
		baud:           115200,
		serialReadTO:   50 * time.Millisecond,
		tick:           time.Millisecond,
		window:         supervisor.DefaultWindow,
		holdoff:        supervisor.DefaultHoldoff,
		queueCap:       32,
		mailboxes:      transport.DefaultMailboxes,
		nodeID:         link.NodeID,
		heartbeatEvery: time.Second,
		sampleBits:     12,
		lines:          "gpio",
		pins:           hwline.DefaultPins,
		logFormat:      "text",
		logLevel:       "info",
	}
}

func parseFlags() (*appConfig, bool) {
	cfg := defaultConfig()
	flag.StringVar(&cfg.backend, "backend", cfg.backend, "CAN backend: socketcan|serial")
	flag.StringVar(&cfg.canIf, "can-if", cfg.canIf, "SocketCAN interface (when --backend=socketcan)")
	flag.StringVar(&cfg.serialDev, "serial", cfg.serialDev, "Serial CAN adapter device (when --backend=serial)")
	flag.IntVar(&cfg.baud, "baud", cfg.baud, "Serial baud rate")
	flag.DurationVar(&cfg.serialReadTO, "serial-read-timeout", cfg.serialReadTO, "Serial read timeout")
	flag.DurationVar(&cfg.tick, "tick", cfg.tick, "Bus timeout tick period")
	flag.IntVar(&cfg.window, "window", cfg.window, "Bus timeout window in ticks")
	flag.DurationVar(&cfg.holdoff, "holdoff", cfg.holdoff, "Tick pause after entering Standby")
	flag.IntVar(&cfg.queueCap, "queue-cap", cfg.queueCap, "Event queue capacity")
	flag.IntVar(&cfg.mailboxes, "mailboxes", cfg.mailboxes, "Transmit mailboxes")
	flag.UintVar(&cfg.nodeID, "node-id", cfg.nodeID, "Own CAN identifier for heartbeat and samples")
	flag.DurationVar(&cfg.heartbeatEvery, "heartbeat-interval", cfg.heartbeatEvery, "Heartbeat period (0 disables)")
	flag.DurationVar(&cfg.sampleEvery, "sample-interval", cfg.sampleEvery, "Air-quality sample period (0 disables)")
	flag.StringVar(&cfg.samplePath, "sample-path", cfg.samplePath, "Raw ADC value file, e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw")
	flag.IntVar(&cfg.sampleBits, "sample-bits", cfg.sampleBits, "ADC resolution in bits (scaled to 8)")
	flag.StringVar(&cfg.lines, "lines", cfg.lines, "Transceiver lines: gpio|sim")
	flag.StringVar(&cfg.pins.Standby, "pin-standby", cfg.pins.Standby, "Standby line GPIO name")
	flag.StringVar(&cfg.pins.Enable, "pin-enable", cfg.pins.Enable, "Enable line GPIO name")
	flag.StringVar(&cfg.pins.Wake, "pin-wake", cfg.pins.Wake, "Wake line GPIO name")
	flag.StringVar(&cfg.pins.Error, "pin-error", cfg.pins.Error, "Error/wake input GPIO name")
	flag.StringVar(&cfg.ledRed, "led-red", cfg.ledRed, "Red status LED GPIO name; empty disables")
	flag.StringVar(&cfg.ledGreen, "led-green", cfg.ledGreen, "Green status LED GPIO name; empty disables")
	flag.StringVar(&cfg.logFormat, "log-format", cfg.logFormat, "Log format: text|json")
	flag.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "Log level: debug|info|warn|error")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", cfg.metricsAddr, "Metrics HTTP listen address (e.g., :9100); empty disables")
	flag.DurationVar(&cfg.logMetricsEvery, "log-metrics-interval", cfg.logMetricsEvery, "If >0, periodically log metrics counters")
	flag.BoolVar(&cfg.mdnsEnable, "mdns-enable", cfg.mdnsEnable, "Advertise the metrics endpoint over mDNS")
	flag.StringVar(&cfg.mdnsName, "mdns-name", cfg.mdnsName, "mDNS instance name (default airq-node-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// explicitly set flags win over env
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate checks values and ranges only; it opens nothing.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "serial":
		if c.serialDev == "" {
			return errors.New("serial device required for serial backend")
		}
	case "socketcan":
		if c.canIf == "" {
			return errors.New("can-if required for socketcan backend")
		}
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	switch c.lines {
	case "sim":
	case "gpio":
		if c.pins.Standby == "" || c.pins.Enable == "" || c.pins.Wake == "" || c.pins.Error == "" {
			return errors.New("all four pin names are required for gpio lines")
		}
	default:
		return fmt.Errorf("invalid lines: %s", c.lines)
	}
	if c.ledRed != "" && c.ledRed == c.ledGreen {
		return fmt.Errorf("led-red and led-green share pin %s", c.ledRed)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.tick <= 0 {
		return fmt.Errorf("tick must be > 0")
	}
	if c.window <= 0 {
		return fmt.Errorf("window must be > 0 (got %d)", c.window)
	}
	if c.holdoff <= 0 {
		return fmt.Errorf("holdoff must be > 0")
	}
	if c.queueCap <= 0 {
		return fmt.Errorf("queue-cap must be > 0 (got %d)", c.queueCap)
	}
	if c.mailboxes <= 0 {
		return fmt.Errorf("mailboxes must be > 0 (got %d)", c.mailboxes)
	}
	if c.nodeID > can.CAN_EFF_MASK {
		return fmt.Errorf("node-id 0x%X exceeds 29 bits", c.nodeID)
	}
	if c.heartbeatEvery < 0 || c.sampleEvery < 0 || c.logMetricsEvery < 0 {
		return errors.New("intervals must be >= 0")
	}
	if c.sampleEvery > 0 && c.samplePath == "" {
		return errors.New("sample-path required when sample-interval > 0")
	}
	if c.sampleBits < 8 || c.sampleBits > 16 {
		return fmt.Errorf("sample-bits must be in 8..16 (got %d)", c.sampleBits)
	}
	if c.mdnsEnable && c.metricsAddr == "" {
		return errors.New("mdns-enable requires metrics-addr")
	}
	return nil
}

// applyEnvOverrides maps AIRQ_NODE_* environment variables to config fields
// unless the corresponding flag was set explicitly. Empty values are ignored.
// The first parse error is returned after all variables were applied.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	lookup := func(flagName, key string) (string, bool) {
		if _, ok := set[flagName]; ok {
			return "", false
		}
		v, ok := os.LookupEnv(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(flagName, key string, dst *string) {
		if v, ok := lookup(flagName, key); ok {
			*dst = v
		}
	}
	integer := func(flagName, key string, dst *int) {
		if v, ok := lookup(flagName, key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	duration := func(flagName, key string, dst *time.Duration) {
		if v, ok := lookup(flagName, key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = d
		}
	}

	str("backend", "AIRQ_NODE_BACKEND", &c.backend)
	str("can-if", "AIRQ_NODE_IF", &c.canIf)
	str("serial", "AIRQ_NODE_SERIAL", &c.serialDev)
	integer("baud", "AIRQ_NODE_BAUD", &c.baud)
	duration("serial-read-timeout", "AIRQ_NODE_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	duration("tick", "AIRQ_NODE_TICK", &c.tick)
	integer("window", "AIRQ_NODE_WINDOW", &c.window)
	duration("holdoff", "AIRQ_NODE_HOLDOFF", &c.holdoff)
	integer("queue-cap", "AIRQ_NODE_QUEUE_CAP", &c.queueCap)
	integer("mailboxes", "AIRQ_NODE_MAILBOXES", &c.mailboxes)
	if v, ok := lookup("node-id", "AIRQ_NODE_NODE_ID"); ok {
		// accepts 0x135 as well as 309
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			fail("AIRQ_NODE_NODE_ID", err)
		} else {
			c.nodeID = uint(n)
		}
	}
	duration("heartbeat-interval", "AIRQ_NODE_HEARTBEAT_INTERVAL", &c.heartbeatEvery)
	duration("sample-interval", "AIRQ_NODE_SAMPLE_INTERVAL", &c.sampleEvery)
	str("sample-path", "AIRQ_NODE_SAMPLE_PATH", &c.samplePath)
	integer("sample-bits", "AIRQ_NODE_SAMPLE_BITS", &c.sampleBits)
	str("lines", "AIRQ_NODE_LINES", &c.lines)
	str("pin-standby", "AIRQ_NODE_PIN_STANDBY", &c.pins.Standby)
	str("pin-enable", "AIRQ_NODE_PIN_ENABLE", &c.pins.Enable)
	str("pin-wake", "AIRQ_NODE_PIN_WAKE", &c.pins.Wake)
	str("pin-error", "AIRQ_NODE_PIN_ERROR", &c.pins.Error)
	str("led-red", "AIRQ_NODE_LED_RED", &c.ledRed)
	str("led-green", "AIRQ_NODE_LED_GREEN", &c.ledGreen)
	str("log-format", "AIRQ_NODE_LOG_FORMAT", &c.logFormat)
	str("log-level", "AIRQ_NODE_LOG_LEVEL", &c.logLevel)
	str("metrics-addr", "AIRQ_NODE_METRICS", &c.metricsAddr)
	duration("log-metrics-interval", "AIRQ_NODE_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	if v, ok := lookup("mdns-enable", "AIRQ_NODE_MDNS_ENABLE"); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			c.mdnsEnable = true
		case "0", "false", "no", "off":
			c.mdnsEnable = false
		default:
			fail("AIRQ_NODE_MDNS_ENABLE", fmt.Errorf("not a boolean: %q", v))
		}
	}
	str("mdns-name", "AIRQ_NODE_MDNS_NAME", &c.mdnsName)
	return firstErr
}
