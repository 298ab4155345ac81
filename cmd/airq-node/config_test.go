package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	c := defaultConfig()
	c.serialDev = "/dev/null"
	c.lines = "sim"
	return c
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
	c := validConfig()
	c.lines = "gpio"
	c.sampleEvery = time.Second
	c.samplePath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	c.metricsAddr = ":9100"
	c.mdnsEnable = true
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badBackend", func(c *appConfig) { c.backend = "x" }},
		{"noCanIf", func(c *appConfig) { c.backend = "socketcan"; c.canIf = "" }},
		{"noSerial", func(c *appConfig) { c.backend = "serial"; c.serialDev = "" }},
		{"badLines", func(c *appConfig) { c.lines = "x" }},
		{"missingPin", func(c *appConfig) { c.lines = "gpio"; c.pins.Wake = "" }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSerialTO", func(c *appConfig) { c.serialReadTO = 0 }},
		{"badTick", func(c *appConfig) { c.tick = 0 }},
		{"badWindow", func(c *appConfig) { c.window = 0 }},
		{"badHoldoff", func(c *appConfig) { c.holdoff = 0 }},
		{"badQueueCap", func(c *appConfig) { c.queueCap = 0 }},
		{"badMailboxes", func(c *appConfig) { c.mailboxes = 0 }},
		{"nodeIDTooWide", func(c *appConfig) { c.nodeID = 0x20000000 }},
		{"negativeHeartbeat", func(c *appConfig) { c.heartbeatEvery = -time.Second }},
		{"sampleWithoutPath", func(c *appConfig) { c.sampleEvery = time.Second }},
		{"badSampleBits", func(c *appConfig) { c.sampleBits = 7 }},
		{"mdnsWithoutMetrics", func(c *appConfig) { c.mdnsEnable = true }},
		{"sharedLEDPin", func(c *appConfig) { c.ledRed = "GPIO5"; c.ledGreen = "GPIO5" }},
	}
	for _, tc := range tests {
		c := validConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestConfigValidate_Nil(t *testing.T) {
	var c *appConfig
	if err := c.validate(); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
