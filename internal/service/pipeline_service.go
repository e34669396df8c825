package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRefreshDays = 1
	MaxRefreshDays     = 1000
)

type SeriesFetcher interface {
	Fetch(ctx context.Context, lookback int) (domain.TimeSeries, error)
}

type PipelineStore interface {
	LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error)
	SaveSeries(ctx context.Context, name string, ts domain.TimeSeries) error
	LoadThresholds(ctx context.Context) (domain.ThresholdSeries, error)
	SaveThresholds(ctx context.Context, ts domain.ThresholdSeries) error
}

type ThresholdEngine interface {
	Compute(premium domain.TimeSeries) domain.ThresholdSeries
}

// PipelineSources are the upstream feeds for each raw series.
type PipelineSources struct {
	Rate    SeriesFetcher
	USDT    SeriesFetcher
	BTCKRW  SeriesFetcher
	BTCUSDT SeriesFetcher
}

type PremiumRefresh struct {
	Premium    domain.TimeSeries      `json:"premium"`
	Thresholds domain.ThresholdSeries `json:"thresholds"`
}

type PipelineService struct {
	tracer  trace.Tracer
	store   PipelineStore
	sources PipelineSources
	engine  ThresholdEngine
	now     func() time.Time
}

func NewPipelineService(
	tracer trace.Tracer,
	store PipelineStore,
	sources PipelineSources,
	engine ThresholdEngine,
	now func() time.Time,
) *PipelineService {
	if now == nil {
		now = time.Now
	}
	return &PipelineService{
		tracer:  tracer,
		store:   store,
		sources: sources,
		engine:  engine,
		now:     now,
	}
}

// RefreshRates scrapes the FX rate, merges it into the stored series and carries
// the last known rate over days without a quote. Returns the refreshed window.
func (s *PipelineService) RefreshRates(ctx context.Context, days int) (domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.refresh-rates")
	defer span.End()
	return s.refreshSeries(ctx, domain.SeriesRate, s.sources.Rate, normalizeDays(days))
}

// RefreshUSDT fetches KRW-USDT daily closes. Today's value is always overwritten.
func (s *PipelineService) RefreshUSDT(ctx context.Context, days int) (domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.refresh-usdt")
	defer span.End()
	return s.refreshSeries(ctx, domain.SeriesUSDT, s.sources.USDT, normalizeDays(days))
}

// RefreshBTC refreshes the domestic and international BTC series. Days without
// a candle are left missing.
func (s *PipelineService) RefreshBTC(ctx context.Context, days int) (map[string]domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.refresh-btc")
	defer span.End()

	days = normalizeDays(days)
	krw, err := s.refreshSeries(ctx, domain.SeriesBTCKRW, s.sources.BTCKRW, days)
	if err != nil {
		return nil, err
	}
	usdt, err := s.refreshSeries(ctx, domain.SeriesBTCUSDT, s.sources.BTCUSDT, days)
	if err != nil {
		return nil, err
	}
	return map[string]domain.TimeSeries{
		domain.SeriesBTCKRW:  krw,
		domain.SeriesBTCUSDT: usdt,
	}, nil
}

// RefreshPremium fetches the three premium inputs concurrently. Nothing is
// persisted unless all three succeed. The premium for the window is merged into
// the stored premium and thresholds are recomputed from the full series.
func (s *PipelineService) RefreshPremium(ctx context.Context, days int) (PremiumRefresh, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.refresh-premium")
	defer span.End()

	days = normalizeDays(days)
	span.SetAttributes(attribute.Int("pipeline.days", days))
	if err := s.requireSources(s.sources.BTCKRW, s.sources.BTCUSDT, s.sources.Rate); err != nil {
		return PremiumRefresh{}, err
	}

	var domestic, international, rate domain.TimeSeries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ts, err := s.sources.BTCKRW.Fetch(gctx, days)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", domain.SeriesBTCKRW, err)
		}
		domestic = ts
		return nil
	})
	g.Go(func() error {
		ts, err := s.sources.BTCUSDT.Fetch(gctx, days)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", domain.SeriesBTCUSDT, err)
		}
		international = ts
		return nil
	})
	g.Go(func() error {
		ts, err := s.sources.Rate.Fetch(gctx, days)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", domain.SeriesRate, err)
		}
		rate = ts
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return PremiumRefresh{}, err
	}

	since, today := s.window(days)
	mergedKRW, err := s.mergeAndSave(ctx, domain.SeriesBTCKRW, domestic, since, today)
	if err != nil {
		return PremiumRefresh{}, err
	}
	mergedUSDT, err := s.mergeAndSave(ctx, domain.SeriesBTCUSDT, international, since, today)
	if err != nil {
		return PremiumRefresh{}, err
	}
	mergedRate, err := s.mergeAndSave(ctx, domain.SeriesRate, rate, since, today)
	if err != nil {
		return PremiumRefresh{}, err
	}

	incoming := series.ComputePremium(mergedKRW.Since(since), mergedUSDT.Since(since), mergedRate.Since(since))
	stored, err := s.store.LoadSeries(ctx, domain.SeriesPremium)
	if err != nil {
		return PremiumRefresh{}, err
	}
	premium := series.Merge(stored, incoming)
	if err := s.store.SaveSeries(ctx, domain.SeriesPremium, premium); err != nil {
		return PremiumRefresh{}, err
	}

	thresholds, err := s.recomputeThresholds(ctx, premium)
	if err != nil {
		return PremiumRefresh{}, err
	}

	log.Printf("premium refreshed: %d new dates, %d stored, %d thresholds", len(incoming), len(premium), len(thresholds))
	return PremiumRefresh{
		Premium:    premium.Since(since),
		Thresholds: thresholds.Since(since),
	}, nil
}

// RefreshAll runs rates, then USDT, then premium. The first failure stops the run.
func (s *PipelineService) RefreshAll(ctx context.Context, days int) error {
	ctx, span := s.tracer.Start(ctx, "pipeline.refresh-all")
	defer span.End()

	if _, err := s.RefreshRates(ctx, days); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}
	if _, err := s.RefreshUSDT(ctx, days); err != nil {
		return fmt.Errorf("refresh usdt: %w", err)
	}
	if _, err := s.RefreshPremium(ctx, days); err != nil {
		return fmt.Errorf("refresh premium: %w", err)
	}
	return nil
}

// RecomputeThresholds rebuilds the threshold series from the stored premium.
func (s *PipelineService) RecomputeThresholds(ctx context.Context) (domain.ThresholdSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.recompute-thresholds")
	defer span.End()

	premium, err := s.store.LoadSeries(ctx, domain.SeriesPremium)
	if err != nil {
		return nil, err
	}
	return s.recomputeThresholds(ctx, premium)
}

// Series returns a stored series limited to the last days days (0 for all).
func (s *PipelineService) Series(ctx context.Context, name string, days int) (domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.series")
	defer span.End()

	if !domain.IsSupportedSeries(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSeries, name)
	}
	ts, err := s.store.LoadSeries(ctx, name)
	if err != nil {
		return nil, err
	}
	if days > 0 {
		ts = ts.Since(domain.DaysAgo(s.now(), days))
	}
	return ts, nil
}

func (s *PipelineService) Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.thresholds")
	defer span.End()

	ts, err := s.store.LoadThresholds(ctx)
	if err != nil {
		return nil, err
	}
	if days > 0 {
		ts = ts.Since(domain.DaysAgo(s.now(), days))
	}
	return ts, nil
}

func (s *PipelineService) refreshSeries(ctx context.Context, name string, fetcher SeriesFetcher, days int) (domain.TimeSeries, error) {
	if err := s.requireSources(fetcher); err != nil {
		return nil, err
	}
	incoming, err := fetcher.Fetch(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	since, today := s.window(days)
	merged, err := s.mergeAndSave(ctx, name, incoming, since, today)
	if err != nil {
		return nil, err
	}
	return merged.Since(since), nil
}

// backfilled lists the series whose missing days take the last known value.
// The BTC candle series stay raw so a day without a quote on either exchange
// is a gap in the premium rather than a premium built from a stale price.
var backfilled = map[string]bool{
	domain.SeriesRate: true,
	domain.SeriesUSDT: true,
}

// mergeAndSave merges incoming into the stored series, carries values forward
// over [since, today] for back-filled series and persists the result.
func (s *PipelineService) mergeAndSave(ctx context.Context, name string, incoming domain.TimeSeries, since, today string) (domain.TimeSeries, error) {
	stored, err := s.store.LoadSeries(ctx, name)
	if err != nil {
		return nil, err
	}
	merged := series.Merge(stored, incoming)
	if backfilled[name] {
		if merged, err = series.CarryForward(merged, since, today); err != nil {
			return nil, fmt.Errorf("back-fill %s: %w", name, err)
		}
	}
	if err := s.store.SaveSeries(ctx, name, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *PipelineService) recomputeThresholds(ctx context.Context, premium domain.TimeSeries) (domain.ThresholdSeries, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("threshold engine: %w", ErrNotConfigured)
	}
	thresholds := s.engine.Compute(premium)
	if len(thresholds) == 0 {
		log.Printf("thresholds skipped: %d premium values is not enough history", len(premium))
		return thresholds, nil
	}
	if d, rec, ok := thresholds.Latest(); ok && rec.Crossed() {
		log.Printf("threshold band crossed for %s: buy %.4f >= sell %.4f", d, rec.BuyThreshold, rec.SellThreshold)
	}
	if err := s.store.SaveThresholds(ctx, thresholds); err != nil {
		return nil, err
	}
	return thresholds, nil
}

func (s *PipelineService) window(days int) (string, string) {
	now := s.now()
	return domain.DaysAgo(now, days), domain.Today(now)
}

func (s *PipelineService) requireSources(fetchers ...SeriesFetcher) error {
	if s.store == nil {
		return fmt.Errorf("pipeline service: %w", ErrNotConfigured)
	}
	for _, f := range fetchers {
		if f == nil {
			return fmt.Errorf("pipeline source: %w", ErrNotConfigured)
		}
	}
	return nil
}

func normalizeDays(days int) int {
	if days <= 0 {
		return DefaultRefreshDays
	}
	if days > MaxRefreshDays {
		return MaxRefreshDays
	}
	return days
}
