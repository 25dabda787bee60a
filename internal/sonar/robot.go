package sonar

import "github.com/banshee-data/sonarmap/internal/geometry"

// Robot places sonar devices on a robot body.
type Robot interface {
	// RangeReading derives the device pose and object location for the active
	// sonar of r.
	RangeReading(r Reading) MappedReading
	// SonarTheta is the heading of device i relative to the robot.
	SonarTheta(i int) float64
	// SonarRange is the maximum usable range in world units.
	SonarRange() int
	NumSonars() int
}

// Pioneer is the sixteen-sonar ring of a Pioneer 2 base. Distances are
// millimeters.
type Pioneer struct{}

var _ Robot = Pioneer{}

// PioneerSonarRange is the longest range a Pioneer sonar reports.
const PioneerSonarRange = 2999

// Offsets from the robot center to each device, and the bearing of each
// device from the center, relative to the robot heading.
var (
	pioneerDistToSonar = [NumSonars]float64{
		194.74, 217.83, 234.09, 241.30, 241.30, 234.09, 217.83, 194.74,
		194.74, 217.83, 234.09, 241.30, 241.30, 234.09, 217.83, 194.74,
	}
	pioneerThetaToSonar = [NumSonars]float64{
		318.12, 328.13, 340.02, 354.05, 5.95, 19.98, 31.87, 41.88,
		138.12, 148.13, 160.02, 174.05, 185.95, 199.98, 211.87, 221.88,
	}
	pioneerSonarTheta = [NumSonars]float64{
		270, 310, 330, 350, 10, 30, 50, 90,
		90, 130, 150, 170, 190, 210, 230, 270,
	}
)

// RangeReading implements Robot.
func (Pioneer) RangeReading(r Reading) MappedReading {
	i := r.Sonar
	sth := geometry.NormalizeTheta(r.Pose.Theta + pioneerThetaToSonar[i])
	sonarCoord := r.Pose.Coord.MappedTo(sth, pioneerDistToSonar[i])
	return MappedReading{
		Reading:   r,
		SonarPose: geometry.Pose{Coord: sonarCoord, Theta: sth},
		Object:    sonarCoord.MappedTo(r.Pose.Theta+pioneerSonarTheta[i], float64(r.Distance)),
	}
}

// SonarTheta implements Robot.
func (Pioneer) SonarTheta(i int) float64 { return pioneerSonarTheta[i] }

// SonarRange implements Robot.
func (Pioneer) SonarRange() int { return PioneerSonarRange }

// NumSonars implements Robot.
func (Pioneer) NumSonars() int { return NumSonars }

// PolarTheta converts a counter-clockwise device heading in degrees to the
// clockwise [0, 360) convention.
func PolarTheta(a float64) float64 {
	var th float64
	switch {
	case a < 0:
		th = -a
	case a == 0:
		th = 0
	default:
		th = 360 - a
	}
	return geometry.NormalizeTheta(th)
}

// DeviceTheta is the inverse of PolarTheta, returning a heading in
// [-180, 180).
func DeviceTheta(th float64) float64 {
	th = geometry.NormalizeTheta(th)
	switch {
	case th == 0:
		return 0
	case th <= 180:
		return -th
	default:
		return 360 - th
	}
}

// PoseFromDevice converts a raw device pose (x forward, y left) to a map pose
// (x east, y north, clockwise heading).
func PoseFromDevice(x, y int, th float64) geometry.Pose {
	return geometry.Pose{Coord: geometry.Coord{X: -y, Y: x}, Theta: PolarTheta(th)}
}

// DevicePose is the inverse of PoseFromDevice.
func DevicePose(p geometry.Pose) (x, y int, th float64) {
	return p.Y, -p.X, DeviceTheta(p.Theta)
}
