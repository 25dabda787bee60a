package sonar

import (
	"github.com/banshee-data/sonarmap/internal/geometry"
)

// Trigger says why a collection was released.
type Trigger int

const (
	// None means the sweep was only buffered.
	None Trigger = iota
	// Distance means the robot moved far enough along x or y.
	Distance
	// Turn means the robot turned far enough. It wins over Distance.
	Turn
)

func (t Trigger) String() string {
	switch t {
	case Distance:
		return "distance"
	case Turn:
		return "turn"
	default:
		return "none"
	}
}

// Collector buffers sweeps until the robot has moved or turned enough, then
// releases one representative sweep for the buffered collection. Each new
// sweep is tested against the trigger and then added to the collection, so a
// released sweep never includes the sweep that triggered it.
type Collector struct {
	maxDistance int
	maxDegrees  float64
	robot       Robot

	started    bool
	startX     int
	startY     int
	startTheta float64
	collection []Reading
}

// NewCollector returns a collector with the given collection limits.
// maxDistance is in world units and maxDegrees in degrees; both must be
// positive.
func NewCollector(robot Robot, maxDistance, maxDegrees int) *Collector {
	return &Collector{
		maxDistance: max(1, maxDistance),
		maxDegrees:  float64(max(1, maxDegrees)),
		robot:       robot,
	}
}

// Add tests r against the trigger. When it fires and a collection is
// buffered, the representative sweep is returned with ok set.
func (c *Collector) Add(r Reading) (rep Reading, trigger Trigger, ok bool) {
	trigger = c.triggered(r.Pose)
	switch trigger {
	case Turn:
		if len(c.collection) > 0 {
			rep, ok = c.collection[len(c.collection)-1], true
		}
		c.collection = c.collection[:0]
	case Distance:
		rep, ok = c.shortest()
		c.collection = c.collection[:0]
	}
	c.collection = append(c.collection, r)
	return rep, trigger, ok
}

// Flush releases whatever is buffered as a distance-style sweep.
func (c *Collector) Flush() (Reading, bool) {
	rep, ok := c.shortest()
	c.collection = c.collection[:0]
	return rep, ok
}

// Reset forgets the buffered sweeps and the trigger reference.
func (c *Collector) Reset() {
	c.collection = c.collection[:0]
	c.started = false
}

// Len is the number of buffered sweeps.
func (c *Collector) Len() int { return len(c.collection) }

func (c *Collector) triggered(p geometry.Pose) Trigger {
	update := None
	if !c.started {
		c.started = true
		update = Distance
	} else {
		dx := p.X - c.startX
		dy := p.Y - c.startY
		if dx >= c.maxDistance || -dx >= c.maxDistance || dy >= c.maxDistance || -dy >= c.maxDistance {
			update = Distance
		}
		if geometry.TurnBetween(c.startTheta, p.Theta) >= c.maxDegrees {
			update = Turn
		}
	}
	if update != None {
		c.startX = p.X / c.maxDistance * c.maxDistance
		c.startY = p.Y / c.maxDistance * c.maxDistance
		c.startTheta = p.Theta
	}
	return update
}

// shortest merges the collection into one sweep holding the shortest range
// per device, taken at the latest pose.
func (c *Collector) shortest() (Reading, bool) {
	if len(c.collection) == 0 {
		return Reading{}, false
	}
	var ranges [NumSonars]int
	for i := range ranges {
		ranges[i] = c.robot.SonarRange() + 1
	}
	for _, r := range c.collection {
		for i, v := range r.Ranges {
			ranges[i] = min(ranges[i], v)
		}
	}
	return NewReading(c.collection[len(c.collection)-1].Pose, ranges), true
}
