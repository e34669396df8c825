package series

import (
	"kimchi-signal/internal/domain"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the precision used whenever values leave the process.
const DisplayPlaces = 2

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}

// Format renders v with exactly places decimals.
func Format(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// RoundSeries returns a copy of ts with every value rounded for display.
func RoundSeries(ts domain.TimeSeries) domain.TimeSeries {
	out := make(domain.TimeSeries, len(ts))
	for d, v := range ts {
		out[d] = Round(v, DisplayPlaces)
	}
	return out
}

// RoundThresholds returns a copy of ts with every field rounded for display.
func RoundThresholds(ts domain.ThresholdSeries) domain.ThresholdSeries {
	out := make(domain.ThresholdSeries, len(ts))
	for d, r := range ts {
		out[d] = domain.ThresholdRecord{
			BuyThreshold:   Round(r.BuyThreshold, DisplayPlaces),
			SellThreshold:  Round(r.SellThreshold, DisplayPlaces),
			Trend:          Round(r.Trend, DisplayPlaces),
			MovingAverage5: Round(r.MovingAverage5, DisplayPlaces),
		}
	}
	return out
}
