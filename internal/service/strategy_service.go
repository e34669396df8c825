package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/strategy"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type StrategyStore interface {
	LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error)
	LoadStrategies(ctx context.Context) ([]domain.StrategyRecord, error)
	SaveStrategies(ctx context.Context, history []domain.StrategyRecord) error
	LoadPromptTemplate(ctx context.Context) (string, error)
}

type StrategyBuilder interface {
	BuildAndAppend(ctx context.Context, history []domain.StrategyRecord, in strategy.PromptInputs, force bool) (strategy.Outcome, error)
}

type StrategyService struct {
	tracer      trace.Tracer
	store       StrategyStore
	builder     StrategyBuilder
	historyDays int
	now         func() time.Time
}

// NewStrategyService wires the analysis pass. historyDays limits the series
// passed to the prompt; zero passes everything stored.
func NewStrategyService(tracer trace.Tracer, store StrategyStore, builder StrategyBuilder, historyDays int, now func() time.Time) *StrategyService {
	if now == nil {
		now = time.Now
	}
	return &StrategyService{
		tracer:      tracer,
		store:       store,
		builder:     builder,
		historyDays: historyDays,
		now:         now,
	}
}

// Analyze requests today's strategy and persists the updated history. When
// today's record already exists and force is false nothing is written.
func (s *StrategyService) Analyze(ctx context.Context, force bool) (strategy.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "strategy-service.analyze")
	span.SetAttributes(attribute.Bool("strategy.force", force))
	defer span.End()

	if s.store == nil || s.builder == nil {
		return strategy.Outcome{}, fmt.Errorf("strategy service: %w", ErrNotConfigured)
	}

	history, err := s.store.LoadStrategies(ctx)
	if err != nil {
		return strategy.Outcome{}, err
	}
	in, err := s.promptInputs(ctx)
	if err != nil {
		return strategy.Outcome{}, err
	}

	outcome, err := s.builder.BuildAndAppend(ctx, history, in, force)
	if err != nil {
		span.RecordError(err)
		return strategy.Outcome{}, err
	}
	if outcome.Skipped {
		log.Printf("strategy for %s already exists, skipping analysis", outcome.Today)
		return outcome, nil
	}

	if _, unparsed := outcome.Result.(strategy.Unparsed); unparsed {
		log.Printf("strategy response for %s was not JSON, stored as summary", outcome.Today)
	}
	if err := s.store.SaveStrategies(ctx, outcome.History); err != nil {
		return strategy.Outcome{}, err
	}
	return outcome, nil
}

// History returns up to limit records, most recent first. limit <= 0 returns all.
func (s *StrategyService) History(ctx context.Context, limit int) ([]domain.StrategyRecord, error) {
	ctx, span := s.tracer.Start(ctx, "strategy-service.history")
	defer span.End()

	if s.store == nil {
		return nil, fmt.Errorf("strategy service: %w", ErrNotConfigured)
	}
	history, err := s.store.LoadStrategies(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	if history == nil {
		history = []domain.StrategyRecord{}
	}
	return history, nil
}

// Latest returns the record with the greatest analysis date.
func (s *StrategyService) Latest(ctx context.Context) (domain.StrategyRecord, error) {
	history, err := s.History(ctx, 0)
	if err != nil {
		return domain.StrategyRecord{}, err
	}
	rec, ok := strategy.LatestByDate(history)
	if !ok {
		return domain.StrategyRecord{}, ErrNoStrategy
	}
	return rec, nil
}

func (s *StrategyService) promptInputs(ctx context.Context) (strategy.PromptInputs, error) {
	tmpl, err := s.store.LoadPromptTemplate(ctx)
	if err != nil {
		return strategy.PromptInputs{}, err
	}

	load := func(name string) (domain.TimeSeries, error) {
		ts, err := s.store.LoadSeries(ctx, name)
		if err != nil {
			return nil, err
		}
		if s.historyDays > 0 {
			ts = ts.Since(domain.DaysAgo(s.now(), s.historyDays))
		}
		return ts, nil
	}

	usdt, err := load(domain.SeriesUSDT)
	if err != nil {
		return strategy.PromptInputs{}, err
	}
	rate, err := load(domain.SeriesRate)
	if err != nil {
		return strategy.PromptInputs{}, err
	}
	premium, err := load(domain.SeriesPremium)
	if err != nil {
		return strategy.PromptInputs{}, err
	}

	return strategy.PromptInputs{
		Template: tmpl,
		USDT:     usdt,
		Rate:     rate,
		Premium:  premium,
	}, nil
}
