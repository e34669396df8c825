package anomaly

import (
	"errors"
	"math"
	"testing"
	"time"

	"kimchi-signal/internal/domain"
)

func calmPremium(days int) domain.TimeSeries {
	ts := domain.TimeSeries{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, domain.Canonical)
	for i := 0; i < days; i++ {
		ts[domain.DateKey(start.AddDate(0, 0, i))] = 1.5 + 0.3*math.Sin(float64(i)/4)
	}
	return ts
}

func TestFeatures(t *testing.T) {
	premium := domain.TimeSeries{"2024-01-01": 1.0, "2024-01-02": 1.5, "2024-01-03": math.NaN(), "2024-01-04": 2.0}
	thresholds := domain.ThresholdSeries{"2024-01-02": {BuyThreshold: 0.5, SellThreshold: 2.5, MovingAverage5: 1.2}}

	samples := Features(premium, thresholds)
	if len(samples) != 1 {
		t.Fatalf("expected one finite sample with a finite predecessor, got %d", len(samples))
	}
	s := samples[0]
	if s.Date != "2024-01-02" || len(s.Features) != len(FeatureNames) {
		t.Fatalf("unexpected sample %+v", s)
	}
	want := []float64{1.5, 0.5, 0.3, 0.5}
	for i := range want {
		if math.Abs(s.Features[i]-want[i]) > 1e-9 {
			t.Fatalf("feature %s = %v, want %v", FeatureNames[i], s.Features[i], want[i])
		}
	}
}

func TestTrainRequiresHistory(t *testing.T) {
	if _, err := Train(Features(calmPremium(10), nil), DefaultOptions()); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected insufficient history, got %v", err)
	}
}

func TestSpikeScoresAboveCalmDay(t *testing.T) {
	samples := Features(calmPremium(120), nil)
	det, err := Train(samples, Options{NumTrees: 100, SampleSize: 64})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	calm := det.Score(samples[len(samples)/2].Features)
	spike := det.Score([]float64{9.0, 7.5, 0, 0.5})
	if calm < 0 || calm > 1 || spike < 0 || spike > 1 {
		t.Fatalf("expected scores in [0,1], got calm=%.4f spike=%.4f", calm, spike)
	}
	if spike <= calm {
		t.Fatalf("expected spike score > calm score, got calm=%.4f spike=%.4f", calm, spike)
	}
	if det.Score([]float64{1}) != 0 {
		t.Fatal("expected zero score for wrong feature width")
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{Threshold: 1.5}.withDefaults()
	if got != DefaultOptions() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}
