package series

import "kimchi-signal/internal/domain"

// ComputePremium returns ((international*rate - domestic) / domestic) * 100 for every
// date where all three inputs hold a strictly positive value. Other dates are
// skipped, never filled. Values are not rounded.
func ComputePremium(domestic, international, rate domain.TimeSeries) domain.TimeSeries {
	out := make(domain.TimeSeries)
	for d, dom := range domestic {
		intl, ok := international[d]
		if !ok {
			continue
		}
		fx, ok := rate[d]
		if !ok {
			continue
		}
		if dom <= 0 || intl <= 0 || fx <= 0 {
			continue
		}
		out[d] = ((intl*fx - dom) / dom) * 100
	}
	return out
}

// Constant returns a series holding value on every date of like. It stands in for
// an input that does not vary by date, such as a conversion rate of 1.
func Constant(like domain.TimeSeries, value float64) domain.TimeSeries {
	out := make(domain.TimeSeries, len(like))
	for d := range like {
		out[d] = value
	}
	return out
}
