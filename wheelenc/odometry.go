package wheelenc

import "math"

// Odometry accumulates per-wheel travel from successive readings.
// Counter wraparound between two readings is handled as long as a wheel
// moves less than 2^31 counts in between.
type Odometry struct {
	countsPerRev int32
	diameter     float32

	last  Reading
	valid bool

	right, left int64 // Total counts
}

func (o *Odometry) update(r Reading) {
	if o.valid {
		o.right += int64(r.RightCount - o.last.RightCount)
		o.left += int64(r.LeftCount - o.last.LeftCount)
	} else {
		o.right = int64(r.RightCount)
		o.left = int64(r.LeftCount)
	}
	o.last = r
	o.valid = true
}

func (o *Odometry) reset() {
	*o = Odometry{countsPerRev: o.countsPerRev, diameter: o.diameter}
}

// Counts returns the total counts of each wheel
func (o *Odometry) Counts() (right, left int64) {
	return o.right, o.left
}

// Distance returns the travel of each wheel in meters. It returns zero
// when CountsPerRev or WheelDiameter is not configured.
func (o *Odometry) Distance() (right, left float32) {
	if o.countsPerRev == 0 || o.diameter == 0 {
		return 0, 0
	}
	perCount := math.Pi * float64(o.diameter) / float64(o.countsPerRev)
	return float32(float64(o.right) * perCount), float32(float64(o.left) * perCount)
}
