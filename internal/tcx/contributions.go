package tcx

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

const earthRadiusMeters = 6371000.0

// wgs84 is the SRID stamped onto contribution geometries.
const wgs84 = 4326

// Contributions converts the document into one normalized contribution per
// lap. Laps without positioned trackpoints are skipped; a document without
// activities yields an empty result.
func (d *Database) Contributions() []domain.Contribution {
	var contributions []domain.Contribution
	for _, activity := range d.Activities {
		for _, lap := range activity.Laps {
			if contribution, ok := lapContribution(lap); ok {
				contributions = append(contributions, contribution)
			}
		}
	}
	return contributions
}

func lapContribution(lap Lap) (domain.Contribution, bool) {
	var (
		coords     []geom.Coord
		timestamps []time.Time
		distance   float64
	)
	for _, track := range lap.Tracks {
		for _, point := range track.Trackpoints {
			if point.Position == nil {
				continue
			}
			coords = append(coords, geom.Coord{
				point.Position.LongitudeDegrees,
				point.Position.LatitudeDegrees,
				point.AltitudeMeters,
			})
			timestamps = append(timestamps, point.Time)

			if len(coords) > 1 {
				distance += haversineMeters(coords[len(coords)-2], coords[len(coords)-1])
			}
		}
	}
	if len(coords) == 0 {
		return domain.Contribution{}, false
	}

	line := geom.NewLineString(geom.XYZ).MustSetCoords(coords).SetSRID(wgs84)
	geometry, err := ewkb.Marshal(line, binary.LittleEndian)
	if err != nil {
		return domain.Contribution{}, false
	}

	first := timestamps[0]
	last := timestamps[len(timestamps)-1]
	return domain.Contribution{
		UserAgent:      domain.UserAgent,
		Distance:       int(distance),
		Duration:       int(last.Sub(first).Seconds()),
		TimeStampStart: first,
		TimeStampStop:  last,
		PointsGeom:     geometry,
		PointsTime:     timestamps,
	}, true
}

// haversineMeters is the great-circle distance between two lon/lat
// coordinates, ignoring altitude.
func haversineMeters(from, to geom.Coord) float64 {
	lat1 := from[1] * math.Pi / 180
	lat2 := to[1] * math.Pi / 180
	dLat := (to[1] - from[1]) * math.Pi / 180
	dLon := (to[0] - from[0]) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
