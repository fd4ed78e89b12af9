package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// OvationFeed mirrors the SWPC OVATION aurora JSON document. Coordinates are
// [longitude 0-360, latitude -90..90, probability 0-100] triples on a
// 1-degree lattice.
type OvationFeed struct {
	ObservationTime string      `json:"Observation Time"`
	ForecastTime    string      `json:"Forecast Time"`
	DataFormat      string      `json:"Data Format"`
	Coordinates     [][]float64 `json:"coordinates"`
}

// AuroraQuery is a caller-supplied position, always in the conventional
// -90..90 / -180..180 representation.
type AuroraQuery struct {
	Lat float64
	Lon float64
}

// ProbabilityResult is the matched grid point with its longitude normalized
// back to -180..180 for output.
type ProbabilityResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Probability float64 `json:"probability"`
}

type gridKey struct {
	lat int
	lon int // 0-360 feed convention
}

// Grid is an in-memory index over the OVATION lattice, keyed by integer
// (lat, lon360) degree.
type Grid struct {
	points          map[gridKey]float64
	observationTime string
	forecastTime    string
}

// NewGrid builds the lookup index from a decoded feed. Triples with fewer
// than three elements are rejected; the grid is a flat ordered sequence in
// the feed, not a true 2-D array, so later duplicates overwrite earlier ones.
func NewGrid(feed OvationFeed) (*Grid, error) {
	points := make(map[gridKey]float64, len(feed.Coordinates))
	for i, c := range feed.Coordinates {
		if len(c) < 3 {
			return nil, &FormatError{
				Product: "ovation-grid",
				Reason:  fmt.Sprintf("coordinate %d has %d elements, want 3", i, len(c)),
			}
		}
		key := gridKey{lat: int(c[1]), lon: int(c[0])}
		points[key] = c[2]
	}
	return &Grid{
		points:          points,
		observationTime: feed.ObservationTime,
		forecastTime:    feed.ForecastTime,
	}, nil
}

// ParseGrid decodes the raw OVATION JSON document and builds the index.
func ParseGrid(data []byte) (*Grid, error) {
	var feed OvationFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, &FormatError{Product: "ovation-grid", Reason: "malformed JSON: " + err.Error()}
	}
	return NewGrid(feed)
}

// ObservationTime reports the feed's observation timestamp, verbatim.
func (g *Grid) ObservationTime() string { return g.observationTime }

// ForecastTime reports the feed's forecast timestamp, verbatim.
func (g *Grid) ForecastTime() string { return g.forecastTime }

// Len reports the number of indexed lattice points.
func (g *Grid) Len() int { return len(g.points) }

// Nearest resolves a query position to its lattice point. The query latitude
// is rounded to the nearest degree; the longitude is rounded after converting
// to the feed's 0-360 convention, then matched exactly against the lattice.
// The result longitude is folded back to -180..180. A missing lattice point
// is a NotFoundError (feed gap), not a caller error.
func (g *Grid) Nearest(q AuroraQuery) (ProbabilityResult, error) {
	if q.Lat < -90 || q.Lat > 90 {
		return ProbabilityResult{}, &ValidationError{Field: "lat", Reason: "must be in [-90, 90]"}
	}
	if q.Lon < -180 || q.Lon > 180 {
		return ProbabilityResult{}, &ValidationError{Field: "lon", Reason: "must be in [-180, 180]"}
	}

	lon360 := q.Lon
	if lon360 < 0 {
		lon360 += 360
	}

	key := gridKey{
		lat: int(math.Round(q.Lat)),
		lon: int(math.Round(lon360)) % 360,
	}

	prob, ok := g.points[key]
	if !ok {
		return ProbabilityResult{}, &NotFoundError{Lat: key.lat, Lon: key.lon}
	}

	outLon := float64(key.lon)
	if outLon > 180 {
		outLon -= 360
	}
	return ProbabilityResult{
		Lat:         float64(key.lat),
		Lon:         outLon,
		Probability: prob,
	}, nil
}
