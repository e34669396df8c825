package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ThresholdsKey     = "kimchi-thresholds.json"
	StrategyKey       = "analyze-strategy.json"
	PromptKey         = "analysis-prompt.txt"
	OptimizeResultKey = "optimize-result.json"
)

// SeriesKey is the blob key for a stored series name.
func SeriesKey(name string) string {
	return name + ".json"
}

// SeriesRepository stores typed pipeline documents on top of a BlobStore.
type SeriesRepository struct {
	store  BlobStore
	tracer trace.Tracer
}

func NewSeriesRepository(store BlobStore, tracer trace.Tracer) *SeriesRepository {
	return &SeriesRepository{store: store, tracer: tracer}
}

// LoadSeries returns the stored series, or an empty one when nothing was written yet.
func (r *SeriesRepository) LoadSeries(ctx context.Context, name string) (domain.TimeSeries, error) {
	ctx, span := r.tracer.Start(ctx, "series-repo.load-series")
	span.SetAttributes(attribute.String("series.name", name))
	defer span.End()

	body, err := r.get(ctx, SeriesKey(name))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return make(domain.TimeSeries), nil
	}
	ts, err := series.DecodeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return ts, nil
}

func (r *SeriesRepository) SaveSeries(ctx context.Context, name string, ts domain.TimeSeries) error {
	ctx, span := r.tracer.Start(ctx, "series-repo.save-series")
	span.SetAttributes(attribute.String("series.name", name), attribute.Int("series.len", len(ts)))
	defer span.End()

	body, err := series.MarshalDescending(map[string]float64(ts))
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return r.put(ctx, SeriesKey(name), body)
}

func (r *SeriesRepository) LoadThresholds(ctx context.Context) (domain.ThresholdSeries, error) {
	ctx, span := r.tracer.Start(ctx, "series-repo.load-thresholds")
	defer span.End()

	body, err := r.get(ctx, ThresholdsKey)
	if err != nil {
		return nil, err
	}
	out := make(domain.ThresholdSeries)
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("load %s: %w", ThresholdsKey, err)
	}
	return out, nil
}

func (r *SeriesRepository) SaveThresholds(ctx context.Context, ts domain.ThresholdSeries) error {
	ctx, span := r.tracer.Start(ctx, "series-repo.save-thresholds")
	span.SetAttributes(attribute.Int("thresholds.len", len(ts)))
	defer span.End()

	body, err := series.MarshalDescending(map[string]domain.ThresholdRecord(ts))
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}
	return r.put(ctx, ThresholdsKey, body)
}

// ErrStrategiesUnreadable reports a stored strategy history that is neither a
// list of records nor a single record. Callers must not overwrite it.
var ErrStrategiesUnreadable = errors.New("strategy history unreadable")

// LoadStrategies returns the strategy history, most recent first. The blob may hold
// an array or a single object. Records are decoded leniently; a blob that still
// cannot be read is an ErrStrategiesUnreadable error rather than empty history.
func (r *SeriesRepository) LoadStrategies(ctx context.Context) ([]domain.StrategyRecord, error) {
	ctx, span := r.tracer.Start(ctx, "series-repo.load-strategies")
	defer span.End()

	body, err := r.get(ctx, StrategyKey)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var list []domain.StrategyRecord
	switch body[0] {
	case '[':
		err = json.Unmarshal(body, &list)
	case '{':
		var rec domain.StrategyRecord
		if err = json.Unmarshal(body, &rec); err == nil {
			list = []domain.StrategyRecord{rec}
		}
	default:
		err = errors.New("expected a JSON array or object")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrStrategiesUnreadable, err)
	}
	return list, nil
}

func (r *SeriesRepository) SaveStrategies(ctx context.Context, history []domain.StrategyRecord) error {
	ctx, span := r.tracer.Start(ctx, "series-repo.save-strategies")
	span.SetAttributes(attribute.Int("strategies.len", len(history)))
	defer span.End()

	if history == nil {
		history = []domain.StrategyRecord{}
	}
	body, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode strategies: %w", err)
	}
	return r.put(ctx, StrategyKey, body)
}

// LoadPromptTemplate returns "" when no template has been uploaded.
func (r *SeriesRepository) LoadPromptTemplate(ctx context.Context) (string, error) {
	body, err := r.get(ctx, PromptKey)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *SeriesRepository) SavePromptTemplate(ctx context.Context, template string) error {
	return r.put(ctx, PromptKey, []byte(template))
}

// SaveOptimizeResult stores any JSON-encodable optimizer output.
func (r *SeriesRepository) SaveOptimizeResult(ctx context.Context, result any) error {
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode optimize result: %w", err)
	}
	return r.put(ctx, OptimizeResultKey, body)
}

// LoadOptimizeResult decodes the stored optimizer output into dst. It reports
// false when nothing has been stored.
func (r *SeriesRepository) LoadOptimizeResult(ctx context.Context, dst any) (bool, error) {
	body, err := r.get(ctx, OptimizeResultKey)
	if err != nil {
		return false, err
	}
	if body == nil {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, fmt.Errorf("load %s: %w", OptimizeResultKey, err)
	}
	return true, nil
}

// get maps ErrNotFound to a nil body.
func (r *SeriesRepository) get(ctx context.Context, key string) ([]byte, error) {
	body, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return body, nil
}

func (r *SeriesRepository) put(ctx context.Context, key string, body []byte) error {
	if err := r.store.Put(ctx, key, body); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
