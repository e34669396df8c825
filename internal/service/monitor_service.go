package service

import (
	"context"
	"fmt"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/strategy"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PriceSource interface {
	Price(ctx context.Context) (float64, error)
}

type MonitorStore interface {
	LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error)
	LoadThresholds(ctx context.Context) (domain.ThresholdSeries, error)
	LoadStrategies(ctx context.Context) ([]domain.StrategyRecord, error)
}

// MonitorService compares the live USDT price with the latest strategy band.
type MonitorService struct {
	tracer trace.Tracer
	store  MonitorStore
	price  PriceSource
}

func NewMonitorService(tracer trace.Tracer, store MonitorStore, price PriceSource) *MonitorService {
	return &MonitorService{tracer: tracer, store: store, price: price}
}

func (s *MonitorService) Check(ctx context.Context) (domain.MonitorResult, error) {
	ctx, span := s.tracer.Start(ctx, "monitor-service.check")
	defer span.End()

	if s.store == nil || s.price == nil {
		return domain.MonitorResult{}, fmt.Errorf("monitor service: %w", ErrNotConfigured)
	}

	history, err := s.store.LoadStrategies(ctx)
	if err != nil {
		return domain.MonitorResult{}, err
	}
	latest, ok := strategy.LatestByDate(history)
	if !ok {
		return domain.MonitorResult{}, ErrNoStrategy
	}

	price, err := s.price.Price(ctx)
	if err != nil {
		return domain.MonitorResult{}, fmt.Errorf("usdt price: %w", err)
	}

	result := domain.MonitorResult{
		USDTPrice:          price,
		BuyPrice:           latest.BuyPrice,
		SellPrice:          latest.SellPrice,
		Action:             DecideAction(price, latest.BuyPrice, latest.SellPrice),
		LatestStrategyDate: latest.AnalysisDate,
	}

	thresholds, err := s.store.LoadThresholds(ctx)
	if err != nil {
		return domain.MonitorResult{}, err
	}
	if d, rec, ok := thresholds.Latest(); ok {
		result.ThresholdDate = d
		result.Threshold = &rec
	}

	premium, err := s.store.LoadSeries(ctx, domain.SeriesPremium)
	if err != nil {
		return domain.MonitorResult{}, err
	}
	if d, v, ok := premium.Latest(); ok {
		result.PremiumDate = d
		result.Premium = &v
	}

	span.SetAttributes(
		attribute.String("monitor.action", string(result.Action)),
		attribute.Float64("monitor.price", price),
	)
	return result, nil
}

// DecideAction is buy below the buy price, sell above the sell price, else hold.
func DecideAction(price, buy, sell float64) domain.MonitorAction {
	switch {
	case price < buy:
		return domain.ActionBuy
	case price > sell:
		return domain.ActionSell
	default:
		return domain.ActionHold
	}
}
