package main

import "time"

const (
	serialReadBufSize = 4096 // per read() buffer for the serial backend
	// largeBufferReclaimThreshold is the capacity above which the serial RX
	// accumulator is dropped and reallocated once drained, so a burst of
	// line noise does not pin a large backing array.
	largeBufferReclaimThreshold = 16 * 1024
	rxBackoffMin                = 20 * time.Millisecond
	rxBackoffMax                = 500 * time.Millisecond
	edgePollInterval            = 100 * time.Millisecond
)
