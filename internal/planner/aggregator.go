package planner

import (
	"errors"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

// CityProbabilities samples the grid at every city's reference coordinate.
// A lattice gap skips that city and is logged and counted; the remaining
// cities still get a probability.
func (p *Planner) CityProbabilities(grid *domain.Grid, cities []domain.City) map[int64]float64 {
	probs := make(map[int64]float64, len(cities))
	for _, city := range cities {
		result, err := grid.Nearest(domain.AuroraQuery{Lat: city.Lat, Lon: city.Lon})
		if err != nil {
			var notFound *domain.NotFoundError
			if errors.As(err, &notFound) {
				p.metrics.GridLookups.WithLabelValues("gap").Inc()
				p.logger.Warn("no lattice point for city, skipping",
					"city_id", city.ID, "city", city.Name, "lat", city.Lat, "lon", city.Lon)
			} else {
				p.metrics.GridLookups.WithLabelValues("invalid").Inc()
				p.logger.Warn("grid lookup rejected city coordinate, skipping",
					"city_id", city.ID, "city", city.Name, "error", err)
			}
			continue
		}
		p.metrics.GridLookups.WithLabelValues("hit").Inc()
		probs[city.ID] = result.Probability
	}
	return probs
}
