package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"kimchi-signal/internal/anomaly"
	"kimchi-signal/internal/domain"
)

func TestAnomalyServiceScanFlagsSpike(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	premium := domain.TimeSeries{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, domain.Canonical)
	for i := 0; i < 90; i++ {
		premium[domain.DateKey(start.AddDate(0, 0, i))] = 1.5 + 0.2*math.Sin(float64(i)/5)
	}
	spikeDate := domain.DateKey(start.AddDate(0, 0, 90))
	premium[spikeDate] = 8.0
	_ = store.SaveSeries(ctx, domain.SeriesPremium, premium)

	svc := NewAnomalyService(testTracer(), store, anomaly.Options{NumTrees: 100, SampleSize: 64})
	report, err := svc.Scan(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Days != 5 || len(report.Scores) != 5 || report.TrainedOn != 90 {
		t.Fatalf("unexpected report shape: %+v", report)
	}
	head := report.Scores[0]
	if head.Date != spikeDate || head.Premium != 8 {
		t.Fatalf("expected newest sample first, got %+v", head)
	}
	for _, s := range report.Scores[1:] {
		if s.Score >= head.Score {
			t.Fatalf("expected spike to outscore %s: %.4f vs %.4f", s.Date, head.Score, s.Score)
		}
	}
}

func TestAnomalyServiceInsufficientHistory(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	_ = store.SaveSeries(ctx, domain.SeriesPremium, domain.TimeSeries{"2024-01-01": 1, "2024-01-02": 2})

	svc := NewAnomalyService(testTracer(), store, anomaly.DefaultOptions())
	if _, err := svc.Scan(ctx, 0); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestAnomalyServiceWithoutStore(t *testing.T) {
	svc := NewAnomalyService(testTracer(), nil, anomaly.DefaultOptions())
	if _, err := svc.Scan(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
