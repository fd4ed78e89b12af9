package domain

// KpReading is one 3-hour Kp sample from the 3-day forecast bulletin.
type KpReading struct {
	TimeSlot string  `json:"time"`     // canonical label, e.g. "00-03UT"
	KpIndex  float64 `json:"kp_index"` // 0-9, two-decimal fixed point
}

// KpForecastDay groups the eight 3-hour readings of one forecast date,
// in bulletin row order (time of day ascending).
type KpForecastDay struct {
	Date     string      `json:"date"` // bulletin label, e.g. "Jan 11"
	Readings []KpReading `json:"values"`
}

// OutlookReading is one line of the 27-day outlook bulletin.
type OutlookReading struct {
	Date           string `json:"date"` // ISO calendar date, e.g. "2025-01-06"
	RadioFlux      int    `json:"radio_flux"`
	PlanetaryIndex int    `json:"planetary_index"`
	LargestKpIndex int    `json:"largest_kp_index"`
}

// TimeSlots are the eight canonical 3-hour UT labels of the Kp breakdown
// table, in row order.
var TimeSlots = [8]string{
	"00-03UT", "03-06UT", "06-09UT", "09-12UT",
	"12-15UT", "15-18UT", "18-21UT", "21-00UT",
}
