package sonarfeed

import (
	"fmt"
	"os"

	"go.bug.st/serial"
)

// OpenSerial opens the serial port at path.
func OpenSerial(path string, opts PortOptions) (Porter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	logf("opened %s at %d baud", path, mode.BaudRate)
	return port, nil
}

// NewSerialFeed returns a feed reading from the serial port at path.
func NewSerialFeed(path string, opts PortOptions) (*Feed, error) {
	return newFeedWith(OpenSerial, path, opts)
}

func newFeedWith(open PortOpener, path string, opts PortOptions) (*Feed, error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewFeed(port), nil
}

// NewFileFeed returns a feed replaying the sonar log at path.
func NewFileFeed(path string) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sonar log: %w", err)
	}
	return NewFeed(f), nil
}
