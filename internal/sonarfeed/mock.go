package sonarfeed

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockPort implements TimeoutPorter with configurable behavior for testing.
type MockPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// BlockReads makes Read wait for data or Close instead of returning
	// io.EOF on an empty buffer.
	BlockReads bool

	readCond *sync.Cond
}

var _ TimeoutPorter = (*MockPort)(nil)

// NewMockPort returns a port that will read data.
func NewMockPort(data string) *MockPort {
	p := &MockPort{ReadBuffer: bytes.NewBufferString(data)}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read reads from the read buffer.
func (p *MockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadCalls++
	if p.Closed {
		return 0, errors.New("port closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads {
		for !p.Closed && p.ReadBuffer.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, errors.New("port closed")
		}
	}
	if p.ReadBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return p.ReadBuffer.Read(b)
}

// Close marks the port as closed and wakes blocked readers.
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// SetReadTimeout records the timeout.
func (p *MockPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadTimeout = timeout
	return nil
}

// AddReadData appends data for subsequent Read calls.
func (p *MockPort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.WriteString(data)
	p.readCond.Signal()
}

// MockOpener returns a PortOpener handing out port, or err when set, and
// recording each path opened.
func MockOpener(port Porter, err error) (PortOpener, *[]string) {
	var mu sync.Mutex
	var paths []string
	open := func(path string, _ PortOptions) (Porter, error) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, path)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
	return open, &paths
}
