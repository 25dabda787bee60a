package sonarfeed

import (
	"io"
	"time"
)

// Porter is the minimal surface the feed needs from a serial port or log
// file. It enables testing without hardware.
type Porter interface {
	io.Reader
	io.Closer
}

// TimeoutPorter is implemented by ports that can bound a blocking read.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}

// PortOpener opens the port at path. Tests replace it to avoid hardware.
type PortOpener func(path string, opts PortOptions) (Porter, error)
