package service

import (
	"context"
	"errors"
	"fmt"

	"kimchi-signal/internal/anomaly"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultAnomalyDays = 14

type AnomalyStore interface {
	LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error)
	LoadThresholds(ctx context.Context) (domain.ThresholdSeries, error)
}

type AnomalyScore struct {
	Date      string  `json:"date"`
	Premium   float64 `json:"premium"`
	Score     float64 `json:"score"`
	Anomalous bool    `json:"anomalous"`
}

type AnomalyReport struct {
	Days      int            `json:"days"`
	Threshold float64        `json:"threshold"`
	TrainedOn int            `json:"trained_on"`
	Scores    []AnomalyScore `json:"scores"`
}

// AnomalyService flags unusual premium days against the stored history.
type AnomalyService struct {
	tracer trace.Tracer
	store  AnomalyStore
	opts   anomaly.Options
}

func NewAnomalyService(tracer trace.Tracer, store AnomalyStore, opts anomaly.Options) *AnomalyService {
	return &AnomalyService{tracer: tracer, store: store, opts: opts}
}

// Scan fits a detector on the whole premium history and scores the last days
// samples, newest first.
func (s *AnomalyService) Scan(ctx context.Context, days int) (AnomalyReport, error) {
	ctx, span := s.tracer.Start(ctx, "anomaly-service.scan")
	defer span.End()

	if s.store == nil {
		return AnomalyReport{}, fmt.Errorf("anomaly service: %w", ErrNotConfigured)
	}
	if days <= 0 {
		days = DefaultAnomalyDays
	}

	premium, err := s.store.LoadSeries(ctx, domain.SeriesPremium)
	if err != nil {
		return AnomalyReport{}, err
	}
	thresholds, err := s.store.LoadThresholds(ctx)
	if err != nil {
		return AnomalyReport{}, err
	}

	samples := anomaly.Features(premium, thresholds)
	det, err := anomaly.Train(samples, s.opts)
	if err != nil {
		if errors.Is(err, anomaly.ErrInsufficientHistory) {
			return AnomalyReport{}, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientData, len(samples), anomaly.MinSamples)
		}
		return AnomalyReport{}, err
	}

	report := AnomalyReport{Days: days, Threshold: det.Threshold(), TrainedOn: len(samples)}
	flagged := 0
	for i := len(samples) - 1; i >= 0 && len(report.Scores) < days; i-- {
		sample := samples[i]
		score := det.Score(sample.Features)
		anomalous := det.IsAnomalous(score)
		if anomalous {
			flagged++
		}
		report.Scores = append(report.Scores, AnomalyScore{
			Date:      sample.Date,
			Premium:   series.Round(sample.Premium, series.DisplayPlaces),
			Score:     series.Round(score, 4),
			Anomalous: anomalous,
		})
	}

	span.SetAttributes(
		attribute.Int("anomaly.trained_on", len(samples)),
		attribute.Int("anomaly.flagged", flagged),
	)
	return report, nil
}
