// Package series holds the pure operations on date-keyed series: merging fetched
// windows into stored history, gap back-fill, and the premium derivation.
package series

import (
	"fmt"

	"kimchi-signal/internal/domain"
)

// Merge overlays incoming on existing. Incoming wins for every date it defines;
// dates only in existing are kept. Neither input is modified.
func Merge(existing, incoming domain.TimeSeries) domain.TimeSeries {
	out := make(domain.TimeSeries, len(existing)+len(incoming))
	for d, v := range existing {
		out[d] = v
	}
	for d, v := range incoming {
		out[d] = v
	}
	return out
}

// CarryForward fills every calendar day in [from, to] that has no value with the
// last known value before it, including values dated before from. Days preceding
// the first known value stay empty.
func CarryForward(ts domain.TimeSeries, from, to string) (domain.TimeSeries, error) {
	days, err := domain.DateRange(from, to)
	if err != nil {
		return nil, fmt.Errorf("carry forward %s..%s: %w", from, to, err)
	}

	out := ts.Clone()

	var prev float64
	havePrev := false
	for _, d := range ts.Dates() {
		if d >= from {
			break
		}
		prev, havePrev = ts[d], true
	}

	for _, d := range days {
		if v, ok := out[d]; ok {
			prev, havePrev = v, true
			continue
		}
		if havePrev {
			out[d] = prev
		}
	}
	return out, nil
}
