// Package domain models NOAA Space Weather Prediction Center (SWPC) data and
// the alerting rules built on top of it.
//
// # Data Sources
//
// Three SWPC products feed the engine:
//
//	3-Day Forecast (text/3-day-forecast.txt)
//	  A fixed-width text bulletin. The "NOAA Kp index breakdown" section is a
//	  table of three date columns by eight 3-hour UT rows ("00-03UT" through
//	  "21-00UT"). Cells carry a decimal Kp value, optionally followed by a
//	  parenthesized G-scale qualifier such as "(G3)" which is informational
//	  and stripped during parsing.
//
//	27-day Outlook (text/27-day-outlook.txt)
//	  One line per UTC date: "2025 Jan 06   172   22   5" giving the 10.7 cm
//	  radio flux, planetary A index, and largest expected Kp index. Lines
//	  starting with "#" are prose and skipped.
//
//	OVATION Aurora Forecast (json/ovation_aurora_latest.json)
//	  A 1-degree lattice of [longitude, latitude, probability] samples.
//	  Longitudes arrive in the 0-360 convention; callers use -180..180.
//	  Lookup rounds the query onto the lattice after converting conventions,
//	  and the result longitude is normalized back to -180..180.
//
// # Alerting Rules
//
// City probabilities are bucketed into broadcast tiers at the 20/40/60 cut
// points (see TierFor). Free-tier users are alerted at a fixed threshold
// (default 50) independent of any per-subscription threshold, and each free
// alert throttles the user for seven days. Paid subscriptions alert at the
// subscriber-chosen threshold and expire after their tier length (1, 3, 7,
// or 30 days).
//
// Topic names encode environment, city, locale, and optionally tier as
// "{env}-aurora-api-{city}-{locale}[-{tier}]"; TopicKey is the structured
// form and the single source of truth for that format.
package domain
