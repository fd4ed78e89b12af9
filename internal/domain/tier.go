package domain

// AlertTier is one row of the broadcast tier table: probabilities at or above
// Min fall into the tier labeled Label (which doubles as the topic suffix).
type AlertTier struct {
	Min   float64
	Label int
}

// Tiers is the ordered tier table, highest first. It is the single source of
// truth for the 20/40/60 cut points consulted by both the topic builder and
// the planner.
var Tiers = []AlertTier{
	{Min: 60, Label: 60},
	{Min: 40, Label: 40},
	{Min: 20, Label: 20},
}

// TierFor maps a probability onto the tier table. The second return is false
// when the probability falls below every tier (no broadcast for that city).
func TierFor(probability float64) (int, bool) {
	for _, t := range Tiers {
		if probability >= t.Min {
			return t.Label, true
		}
	}
	return 0, false
}
