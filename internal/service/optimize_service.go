package service

import (
	"context"
	"fmt"
	"log"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/signal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OptimizeStore interface {
	LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error)
	SaveOptimizeResult(ctx context.Context, result any) error
	LoadOptimizeResult(ctx context.Context, dst any) (bool, error)
}

type OptimizeService struct {
	tracer trace.Tracer
	store  OptimizeStore
	base   signal.Config
	opts   backtest.Options
}

func NewOptimizeService(tracer trace.Tracer, store OptimizeStore, base signal.Config, opts backtest.Options) *OptimizeService {
	return &OptimizeService{tracer: tracer, store: store, base: base, opts: opts}
}

// Run grid-searches the engine parameters over the stored USDT and rate history
// and persists the report.
func (s *OptimizeService) Run(ctx context.Context) (backtest.Report, error) {
	ctx, span := s.tracer.Start(ctx, "optimize-service.run")
	defer span.End()

	if s.store == nil {
		return backtest.Report{}, fmt.Errorf("optimize service: %w", ErrNotConfigured)
	}

	usdt, err := s.store.LoadSeries(ctx, domain.SeriesUSDT)
	if err != nil {
		return backtest.Report{}, err
	}
	rate, err := s.store.LoadSeries(ctx, domain.SeriesRate)
	if err != nil {
		return backtest.Report{}, err
	}
	log.Printf("optimizer starting: %d usdt dates, %d rate dates", len(usdt), len(rate))

	report, err := backtest.Optimize(ctx, usdt, rate, s.base, s.opts)
	if err != nil {
		return backtest.Report{}, err
	}
	span.SetAttributes(
		attribute.Int("optimize.combinations", report.TotalCombinations),
		attribute.Float64("optimize.best_return", report.BestResult.TotalReturn),
	)

	if err := s.store.SaveOptimizeResult(ctx, report); err != nil {
		return backtest.Report{}, err
	}
	log.Printf("optimizer finished: %d combinations, best return %.2f%%", report.TotalCombinations, report.BestResult.TotalReturn)
	return report, nil
}

// Latest returns the last persisted report, if any.
func (s *OptimizeService) Latest(ctx context.Context) (backtest.Report, bool, error) {
	ctx, span := s.tracer.Start(ctx, "optimize-service.latest")
	defer span.End()

	if s.store == nil {
		return backtest.Report{}, false, fmt.Errorf("optimize service: %w", ErrNotConfigured)
	}
	var report backtest.Report
	ok, err := s.store.LoadOptimizeResult(ctx, &report)
	if err != nil || !ok {
		return backtest.Report{}, ok, err
	}
	return report, true, nil
}
