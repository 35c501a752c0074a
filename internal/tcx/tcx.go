// Package tcx parses Training Center XML trajectory documents and converts
// them into normalized contributions.
package tcx

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Database is the root of a TCX document.
type Database struct {
	XMLName    xml.Name   `xml:"TrainingCenterDatabase"`
	Activities []Activity `xml:"Activities>Activity"`
}

// Activity is one recorded exercise session.
type Activity struct {
	Sport string `xml:"Sport,attr"`
	ID    string `xml:"Id"`
	Laps  []Lap  `xml:"Lap"`
}

// Lap groups the trackpoints recorded between two lap markers.
type Lap struct {
	StartTime string  `xml:"StartTime,attr"`
	Tracks    []Track `xml:"Track"`
}

// Track is an ordered run of trackpoints.
type Track struct {
	Trackpoints []Trackpoint `xml:"Trackpoint"`
}

// Trackpoint is a single timestamped sample. Position is absent for
// samples recorded without a GPS fix.
type Trackpoint struct {
	Time           time.Time `xml:"Time"`
	Position       *Position `xml:"Position"`
	AltitudeMeters float64   `xml:"AltitudeMeters"`
}

// Position is a geographic coordinate in degrees.
type Position struct {
	LatitudeDegrees  float64 `xml:"LatitudeDegrees"`
	LongitudeDegrees float64 `xml:"LongitudeDegrees"`
}

// Parse decodes a raw TCX document.
func Parse(raw []byte) (*Database, error) {
	var db Database
	if err := xml.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse tcx document: %w", err)
	}
	return &db, nil
}
