// Package mapper drives a global map from a stream of sonar sweeps. Sweeps
// pass through a collector; each sweep it releases is applied to the map one
// sonar at a time.
package mapper

import (
	"context"
	"fmt"
	"io"

	"github.com/banshee-data/sonarmap/internal/globalmap"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

var logf = monitoring.Tagged("mapper")

// Recorder stores the sweeps a mapper consumes.
type Recorder interface {
	RecordSweep(runID string, seq int, r sonar.Reading) error
}

// Stats summarizes a mapper's progress.
type Stats struct {
	Sweeps   int // sweeps received
	Released int // sweeps released by the collector
	Updates  int // non-empty update logs
	ByTurn   int
	ByMove   int
}

// Mapper feeds sweeps into a GlobalMap.
type Mapper struct {
	global    *globalmap.GlobalMap
	collector *sonar.Collector
	robot     sonar.Robot

	sink     io.Writer
	recorder Recorder
	runID    string

	stats Stats
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithSink forwards every non-empty update log to w.
func WithSink(w io.Writer) Option {
	return func(m *Mapper) { m.sink = w }
}

// WithRecorder stores every received sweep under runID.
func WithRecorder(r Recorder, runID string) Option {
	return func(m *Mapper) {
		m.recorder = r
		m.runID = runID
	}
}

// New returns a mapper over global, collecting sweeps with the global map's
// collection limits.
func New(global *globalmap.GlobalMap, robot sonar.Robot, opts ...Option) *Mapper {
	s := global.Settings()
	m := &Mapper{
		global:    global,
		collector: sonar.NewCollector(robot, s.MaxCollectionDistance, s.MaxCollectionDegrees),
		robot:     robot,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Global is the map being built.
func (m *Mapper) Global() *globalmap.GlobalMap { return m.global }

// Stats returns the counts so far.
func (m *Mapper) Stats() Stats { return m.stats }

// Add takes one sweep. If it triggers the collector, the released sweep is
// applied to the map.
func (m *Mapper) Add(r sonar.Reading) error {
	if m.recorder != nil {
		if err := m.recorder.RecordSweep(m.runID, m.stats.Sweeps, r); err != nil {
			return fmt.Errorf("record sweep: %w", err)
		}
	}
	m.stats.Sweeps++

	rep, trigger, ok := m.collector.Add(r)
	if !ok {
		return nil
	}
	switch trigger {
	case sonar.Turn:
		m.stats.ByTurn++
	case sonar.Distance:
		m.stats.ByMove++
	}
	return m.apply(rep)
}

// apply runs every sonar of sweep r through the global map.
func (m *Mapper) apply(r sonar.Reading) error {
	m.stats.Released++
	for i := 0; i < m.robot.NumSonars(); i++ {
		out := m.global.UpdateReading(r.WithSonar(i))
		if out == "" {
			continue
		}
		m.stats.Updates++
		if m.sink == nil {
			continue
		}
		if _, err := io.WriteString(m.sink, out+"\n"); err != nil {
			return fmt.Errorf("write update: %w", err)
		}
	}
	return nil
}

// Run consumes sweeps until the channel closes or ctx is canceled, then
// finishes the map.
func (m *Mapper) Run(ctx context.Context, sweeps <-chan sonar.Reading) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-sweeps:
			if !ok {
				return m.Finish()
			}
			if err := m.Add(r); err != nil {
				return err
			}
		}
	}
}

// Finish applies whatever the collector still holds and finalizes the map.
func (m *Mapper) Finish() error {
	if rep, ok := m.collector.Flush(); ok {
		if err := m.apply(rep); err != nil {
			return err
		}
	}
	m.global.Finalize()
	logf("finished: %d sweeps, %d released (%d by distance, %d by turn), %d updates, %d local maps",
		m.stats.Sweeps, m.stats.Released, m.stats.ByMove, m.stats.ByTurn, m.stats.Updates, len(m.global.Maps()))
	return nil
}
