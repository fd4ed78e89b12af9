package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// breakdownDateRe matches the date header row of the Kp breakdown table,
	// e.g. "             Jan 11       Jan 12       Jan 13".
	breakdownDateRe = regexp.MustCompile(`^\s*([A-Z][a-z]{2}\s+\d{1,2})\s+([A-Z][a-z]{2}\s+\d{1,2})\s+([A-Z][a-z]{2}\s+\d{1,2})\s*$`)

	// qualifierRe matches trailing parenthetical qualifiers in table cells,
	// e.g. "5.33 (G1)" -> "(G1)". Only the leading number is significant.
	qualifierRe = regexp.MustCompile(`\([^)]*\)`)

	// outlookHeaderRe matches the column header comment of the 27-day outlook,
	// e.g. "#   UTC      Radio Flux   Planetary   Largest".
	outlookHeaderRe = regexp.MustCompile(`Radio\s+Flux`)

	// spaceRe collapses runs of whitespace inside date labels.
	spaceRe = regexp.MustCompile(`\s+`)
)

const breakdownMarker = "NOAA Kp index breakdown"

// ParseThreeDayForecast extracts the Kp index breakdown table from a 3-day
// forecast bulletin. It returns exactly three date groups of eight readings
// each, in bulletin row order. Cell qualifiers such as "(G3)" are stripped
// before numeric parsing.
func ParseThreeDayForecast(text string) ([]KpForecastDay, error) {
	lines := strings.Split(text, "\n")

	marker := -1
	for i, line := range lines {
		if strings.Contains(line, breakdownMarker) {
			marker = i
			break
		}
	}
	if marker == -1 {
		return nil, &FormatError{Product: "3-day-forecast", Reason: "Kp index breakdown section not found"}
	}

	headerIdx := -1
	var dates []string
	for i := marker + 1; i < len(lines); i++ {
		m := breakdownDateRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		headerIdx = i
		for _, label := range m[1:] {
			dates = append(dates, spaceRe.ReplaceAllString(label, " "))
		}
		break
	}
	if headerIdx == -1 {
		return nil, &FormatError{Product: "3-day-forecast", Reason: "date header row not found after breakdown marker"}
	}

	days := make([]KpForecastDay, len(dates))
	for i, date := range dates {
		days[i] = KpForecastDay{Date: date, Readings: make([]KpReading, 0, len(TimeSlots))}
	}

	row := headerIdx
	for _, slot := range TimeSlots {
		row++
		for row < len(lines) && strings.TrimSpace(lines[row]) == "" {
			row++
		}
		if row >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[row]), slot) {
			return nil, &FormatError{
				Product: "3-day-forecast",
				Reason:  "missing time slot row " + slot,
				Snippet: snippetAt(lines, row),
			}
		}

		values, err := parseKpRow(lines[row], slot, len(dates))
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			days[i].Readings = append(days[i].Readings, KpReading{TimeSlot: slot, KpIndex: v})
		}
	}

	return days, nil
}

// parseKpRow parses one breakdown row ("03-06UT  1.33 (G3)  1.33  5.33 (G1)")
// into want numeric cells. A row with the wrong cell count is a hard format
// error; partial rows are never tolerated.
func parseKpRow(line, slot string, want int) ([]float64, error) {
	cells := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), slot))
	cells = qualifierRe.ReplaceAllString(cells, " ")

	fields := strings.Fields(cells)
	if len(fields) != want {
		return nil, &FormatError{
			Product: "3-day-forecast",
			Reason:  "expected " + strconv.Itoa(want) + " Kp values in row " + slot,
			Snippet: strings.TrimSpace(line),
		}
	}

	values := make([]float64, 0, want)
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &FormatError{
				Product: "3-day-forecast",
				Reason:  "malformed Kp value in row " + slot,
				Snippet: f,
			}
		}
		values = append(values, v)
	}
	return values, nil
}

// ParseOutlook extracts the daily table from a 27-day outlook bulletin: one
// reading per listed date with radio flux, planetary A index, and largest Kp
// captured verbatim as integers. Dates are normalized from "2025 Jan 06" to
// "2025-01-06".
func ParseOutlook(text string) ([]OutlookReading, error) {
	headerSeen := false
	var readings []OutlookReading

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ":") {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if outlookHeaderRe.MatchString(trimmed) {
				headerSeen = true
			}
			continue
		}
		if !headerSeen {
			return nil, &FormatError{
				Product: "27-day-outlook",
				Reason:  "data line before column header",
				Snippet: trimmed,
			}
		}

		reading, err := parseOutlookLine(trimmed)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	if !headerSeen {
		return nil, &FormatError{Product: "27-day-outlook", Reason: "column header not recognized"}
	}
	return readings, nil
}

// parseOutlookLine parses "2025 Jan 06     172          22          5".
func parseOutlookLine(line string) (OutlookReading, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return OutlookReading{}, &FormatError{
			Product: "27-day-outlook",
			Reason:  "expected date and 3 numeric columns",
			Snippet: line,
		}
	}

	date, err := time.Parse("2006 Jan 2", strings.Join(fields[:3], " "))
	if err != nil {
		return OutlookReading{}, &FormatError{
			Product: "27-day-outlook",
			Reason:  "malformed date",
			Snippet: strings.Join(fields[:3], " "),
		}
	}

	nums := make([]int, 3)
	for i, f := range fields[3:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return OutlookReading{}, &FormatError{
				Product: "27-day-outlook",
				Reason:  "malformed numeric column",
				Snippet: f,
			}
		}
		nums[i] = n
	}

	return OutlookReading{
		Date:           date.Format("2006-01-02"),
		RadioFlux:      nums[0],
		PlanetaryIndex: nums[1],
		LargestKpIndex: nums[2],
	}, nil
}

// snippetAt returns the line at idx for error context, or "" past the end.
func snippetAt(lines []string, idx int) string {
	if idx < 0 || idx >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[idx])
}
