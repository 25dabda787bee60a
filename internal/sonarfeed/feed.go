// Package sonarfeed turns a stream of sonar log lines, from a serial port or
// a recorded log, into sweeps delivered to subscribers.
package sonarfeed

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

var logf = monitoring.Tagged("sonarfeed")

// ErrClosed is returned by Monitor when the feed was closed while reading.
var ErrClosed = errors.New("sonarfeed: closed")

// Stats counts the lines a feed has seen.
type Stats struct {
	Lines     int
	Sweeps    int
	Skipped   int
	Malformed int
}

type subscriber struct {
	ch   chan sonar.Reading
	done chan struct{}
	once sync.Once
}

func (s *subscriber) cancel() { s.once.Do(func() { close(s.done) }) }

// Feed reads sonar log lines from a port and fans the parsed sweeps out to
// subscribers. Delivery blocks until every subscriber has taken the sweep,
// so no sweep is lost to a slow reader.
type Feed struct {
	port Porter

	// subscriberMu is held while a sweep is delivered.
	subscriberMu sync.Mutex
	subscribers  map[string]*subscriber

	mu       sync.Mutex
	closing  bool
	stats    Stats
	stop     chan struct{}
	stopOnce sync.Once
}

// NewFeed wraps an open port.
func NewFeed(port Porter) *Feed {
	return &Feed{
		port:        port,
		subscribers: make(map[string]*subscriber),
		stop:        make(chan struct{}),
	}
}

// Subscribe registers a channel for sweeps. It is closed when the feed ends,
// is closed, or the subscription is removed.
func (f *Feed) Subscribe() (string, <-chan sonar.Reading) {
	id := uuid.NewString()
	ch := make(chan sonar.Reading, 16)

	if f.isClosing() {
		close(ch)
		return id, ch
	}
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	f.subscribers[id] = &subscriber{ch: ch, done: make(chan struct{})}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(id string) {
	f.subscriberMu.Lock()
	sub, ok := f.subscribers[id]
	f.subscriberMu.Unlock()
	if !ok {
		return
	}
	sub.cancel()

	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	if _, ok := f.subscribers[id]; ok {
		close(sub.ch)
		delete(f.subscribers, id)
	}
}

// Stats returns the line counts so far.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Monitor reads the port until it is exhausted, the context is canceled or
// the feed is closed. Blank lines and lines starting with '%' or '#' are
// skipped; malformed records are logged and skipped. Subscriber channels are
// closed on return.
func (f *Feed) Monitor(ctx context.Context) error {
	defer f.closeSubscribers()

	scan := bufio.NewScanner(f.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if f.isClosing() {
				return ErrClosed
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if f.isClosing() {
						return ErrClosed
					}
					return err
				default:
					return nil
				}
			}
			if f.isClosing() {
				return ErrClosed
			}
			if err := f.handle(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) handle(ctx context.Context, line string) error {
	f.mu.Lock()
	f.stats.Lines++
	f.mu.Unlock()

	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") {
		f.count(func(s *Stats) { s.Skipped++ })
		return nil
	}
	r, err := sonar.ParseRecord(trimmed)
	if err != nil {
		logf("skipping line: %v", err)
		f.count(func(s *Stats) { s.Malformed++ })
		return nil
	}
	f.count(func(s *Stats) { s.Sweeps++ })

	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	for _, sub := range f.subscribers {
		select {
		case sub.ch <- r:
		case <-sub.done:
		case <-f.stop:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *Feed) count(update func(*Stats)) {
	f.mu.Lock()
	update(&f.stats)
	f.mu.Unlock()
}

func (f *Feed) isClosing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closing
}

func (f *Feed) closeSubscribers() {
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	for id, sub := range f.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(f.subscribers, id)
	}
}

// Close stops delivery, closes every subscriber channel and closes the port.
func (f *Feed) Close() error {
	f.mu.Lock()
	f.closing = true
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stop) })

	f.closeSubscribers()
	logf("closing feed")
	return f.port.Close()
}
