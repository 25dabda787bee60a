// Package sonar models range sweeps from a ring of sonar devices: the
// readings themselves, the robot geometry that places each device, the
// sonar log record format and the sweep collector.
package sonar

import (
	"fmt"

	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
)

// NumSonars is the size of a sweep.
const NumSonars = config.NumSonars

// Reading is one sweep of range returns taken at a robot pose. Sonar selects
// the active device and Distance holds its range, possibly scaled.
type Reading struct {
	Pose     geometry.Pose
	Ranges   [NumSonars]int
	Sonar    int
	Distance int
}

// NewReading builds a sweep with sonar 0 active.
func NewReading(pose geometry.Pose, ranges [NumSonars]int) Reading {
	return Reading{Pose: pose, Ranges: ranges, Distance: ranges[0]}
}

// WithSonar returns a copy with sonar i active.
func (r Reading) WithSonar(i int) Reading {
	r.Sonar = i
	r.Distance = r.Ranges[i]
	return r
}

// Scaled divides the pose and the active distance by f. The per-device
// ranges keep world units.
func (r Reading) Scaled(f float64) Reading {
	r.Pose = r.Pose.Scaled(f)
	r.Distance = int(float64(r.Distance) / f)
	return r
}

func (r Reading) String() string {
	return fmt.Sprintf("%v sonar %d range %d", r.Pose, r.Sonar, r.Distance)
}

// MappedReading is a reading with the emitting device's pose and the
// location implied by its range return.
type MappedReading struct {
	Reading
	SonarPose geometry.Pose
	Object    geometry.Coord
}

// Scaled divides every coordinate and the active distance by f.
func (m MappedReading) Scaled(f float64) MappedReading {
	return MappedReading{
		Reading:   m.Reading.Scaled(f),
		SonarPose: m.SonarPose.Scaled(f),
		Object:    m.Object.Scaled(f),
	}
}

func (m MappedReading) String() string {
	return fmt.Sprintf("%v sonar pose %v object %v", m.Reading, m.SonarPose, m.Object)
}
