package domain

import "time"

// Contribution is a normalized trip as written to the shared contributions
// store: one lap of a trajectory document.
type Contribution struct {
	ID             int64
	UserAgent      string
	Distance       int
	Duration       int
	TimeStampStart time.Time
	TimeStampStop  time.Time
	// PointsGeom is the trip geometry as a PostGIS EWKB 3-D line string.
	PointsGeom []byte
	// PointsTime holds one timestamp per trackpoint, in trackpoint order.
	PointsTime []time.Time
}
