package domain

import "fmt"

// FormatError reports malformed bulletin text. It carries the offending
// snippet so operators can find the broken section without refetching.
type FormatError struct {
	Product string // e.g. "3-day-forecast", "27-day-outlook"
	Snippet string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s: %s", e.Product, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %q", e.Product, e.Reason, e.Snippet)
}

// NotFoundError reports a gap in the probability grid. Grid coverage is
// expected to be complete for valid world coordinates, so a miss is a
// data-quality fault in the feed, not a caller error.
type NotFoundError struct {
	Lat int
	Lon int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no grid point at lat=%d lon360=%d", e.Lat, e.Lon)
}

// TransportError reports a network-level failure talking to an external
// system (SWPC fetch, push delivery). Fetches may be retried with bounded
// attempts; sends are fire-once per job run.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports an out-of-range input rejected before any lookup
// or state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
