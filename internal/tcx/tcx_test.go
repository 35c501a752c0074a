package tcx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
)

const singleLapDoc = `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2">
  <Activities>
    <Activity Sport="Biking">
      <Id>2020-12-30T10:00:00.000Z</Id>
      <Lap StartTime="2020-12-30T10:00:00.000Z">
        <Track>
          <Trackpoint>
            <Time>2020-12-30T10:00:00.000Z</Time>
            <Position>
              <LatitudeDegrees>51.000000</LatitudeDegrees>
              <LongitudeDegrees>3.700000</LongitudeDegrees>
            </Position>
            <AltitudeMeters>12.5</AltitudeMeters>
          </Trackpoint>
          <Trackpoint>
            <Time>2020-12-30T10:00:15.000Z</Time>
            <Position>
              <LatitudeDegrees>51.001000</LatitudeDegrees>
              <LongitudeDegrees>3.700000</LongitudeDegrees>
            </Position>
            <AltitudeMeters>13.0</AltitudeMeters>
          </Trackpoint>
          <Trackpoint>
            <Time>2020-12-30T10:00:42.900Z</Time>
            <Position>
              <LatitudeDegrees>51.001000</LatitudeDegrees>
              <LongitudeDegrees>3.701000</LongitudeDegrees>
            </Position>
            <AltitudeMeters>13.5</AltitudeMeters>
          </Trackpoint>
        </Track>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

func TestParseAndConvertSingleLap(t *testing.T) {
	db, err := Parse([]byte(singleLapDoc))
	require.NoError(t, err)
	require.Len(t, db.Activities, 1)
	require.Equal(t, "Biking", db.Activities[0].Sport)

	contributions := db.Contributions()
	require.Len(t, contributions, 1)

	c := contributions[0]
	require.Equal(t, domain.UserAgent, c.UserAgent)

	// ~111m north plus ~70m east at this latitude; the duration drops the
	// fractional second.
	require.InDelta(t, 181, c.Distance, 2)
	require.Equal(t, 42, c.Duration)

	require.Equal(t, time.Date(2020, time.December, 30, 10, 0, 0, 0, time.UTC), c.TimeStampStart)
	require.Equal(t, time.Date(2020, time.December, 30, 10, 0, 42, 900000000, time.UTC), c.TimeStampStop)
	require.Len(t, c.PointsTime, 3)
	require.NotEmpty(t, c.PointsGeom)
}

func TestContributionsSkipsPositionlessPoints(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase>
  <Activities>
    <Activity Sport="Biking">
      <Lap StartTime="2020-12-30T10:00:00.000Z">
        <Track>
          <Trackpoint>
            <Time>2020-12-30T10:00:00.000Z</Time>
          </Trackpoint>
          <Trackpoint>
            <Time>2020-12-30T10:00:05.000Z</Time>
            <Position>
              <LatitudeDegrees>51.0</LatitudeDegrees>
              <LongitudeDegrees>3.7</LongitudeDegrees>
            </Position>
          </Trackpoint>
        </Track>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

	db, err := Parse([]byte(doc))
	require.NoError(t, err)

	contributions := db.Contributions()
	require.Len(t, contributions, 1)
	require.Len(t, contributions[0].PointsTime, 1)
	require.Equal(t, 0, contributions[0].Distance)
	require.Equal(t, 0, contributions[0].Duration)
}

func TestContributionsSkipsLapsWithoutPositions(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase>
  <Activities>
    <Activity Sport="Biking">
      <Lap StartTime="2020-12-30T10:00:00.000Z">
        <Track>
          <Trackpoint>
            <Time>2020-12-30T10:00:00.000Z</Time>
          </Trackpoint>
        </Track>
      </Lap>
      <Lap StartTime="2020-12-30T10:10:00.000Z"></Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

	db, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, db.Contributions())
}

func TestContributionsOnePerLap(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase>
  <Activities>
    <Activity Sport="Biking">
      <Lap StartTime="2020-12-30T10:00:00.000Z">
        <Track>
          <Trackpoint>
            <Time>2020-12-30T10:00:00.000Z</Time>
            <Position><LatitudeDegrees>51.0</LatitudeDegrees><LongitudeDegrees>3.7</LongitudeDegrees></Position>
          </Trackpoint>
        </Track>
      </Lap>
      <Lap StartTime="2020-12-30T10:10:00.000Z">
        <Track>
          <Trackpoint>
            <Time>2020-12-30T10:10:00.000Z</Time>
            <Position><LatitudeDegrees>51.1</LatitudeDegrees><LongitudeDegrees>3.8</LongitudeDegrees></Position>
          </Trackpoint>
        </Track>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

	db, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, db.Contributions(), 2)
}

func TestParseEmptyDocument(t *testing.T) {
	db, err := Parse([]byte(`<TrainingCenterDatabase></TrainingCenterDatabase>`))
	require.NoError(t, err)
	require.Empty(t, db.Contributions())
}

func TestParseMalformedDocument(t *testing.T) {
	_, err := Parse([]byte(`<TrainingCenterDatabase><Activities>`))
	require.Error(t, err)
}
