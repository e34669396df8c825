package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kimchi-signal/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func newTestRepo() (*SeriesRepository, *MemoryBlobStore) {
	store := NewMemoryBlobStore()
	return NewSeriesRepository(store, trace.NewNoopTracerProvider().Tracer("test")), store
}

func TestLoadSeriesMissingIsEmpty(t *testing.T) {
	repo, _ := newTestRepo()
	ts, err := repo.LoadSeries(context.Background(), domain.SeriesUSDT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts == nil || len(ts) != 0 {
		t.Fatalf("expected empty series, got %v", ts)
	}
}

func TestSaveSeriesWritesDescending(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()
	ts := domain.TimeSeries{"2024-01-01": 1300, "2024-01-03": 1310, "2024-01-02": 1305}

	if err := repo.SaveSeries(ctx, domain.SeriesRate, ts); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := store.Get(ctx, "rate-history.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := `{"2024-01-03":1310,"2024-01-02":1305,"2024-01-01":1300}`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}

	loaded, err := repo.LoadSeries(ctx, domain.SeriesRate)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 || loaded["2024-01-02"] != 1305 {
		t.Fatalf("unexpected loaded series %v", loaded)
	}
}

func TestLoadSeriesSurfacesStoreErrors(t *testing.T) {
	repo := NewSeriesRepository(failingStore{}, trace.NewNoopTracerProvider().Tracer("test"))
	if _, err := repo.LoadSeries(context.Background(), domain.SeriesUSDT); err == nil {
		t.Fatal("expected error")
	}
	if err := repo.SaveSeries(context.Background(), domain.SeriesUSDT, domain.TimeSeries{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestThresholdsRoundTrip(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()
	ts := domain.ThresholdSeries{
		"2024-01-05": {BuyThreshold: 0.5, SellThreshold: 2.5, MovingAverage5: 1.2},
		"2024-01-06": {BuyThreshold: 0.45, SellThreshold: 2.6, Trend: 0.1, MovingAverage5: 1.3},
	}
	if err := repo.SaveThresholds(ctx, ts); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _ := store.Get(ctx, ThresholdsKey)
	if !strings.HasPrefix(string(raw), `{"2024-01-06":{"buy_threshold":0.45`) {
		t.Fatalf("expected most recent first, got %s", raw)
	}

	loaded, err := repo.LoadThresholds(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["2024-01-06"].SellThreshold != 2.6 {
		t.Fatalf("unexpected thresholds %v", loaded)
	}
}

func TestLoadStrategiesShapes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantLen    int
		first      string
		unreadable bool
	}{
		{"array", `[{"analysis_date":"2024-01-02","buy_price":1300},{"analysis_date":"2024-01-01"}]`, 2, "2024-01-02", false},
		{"single object", `{"analysis_date":"2024-01-02","buy_price":"1,300"}`, 1, "2024-01-02", false},
		{"odd number kept", `[{"analysis_date":"2024-01-03","buy_price":"about 1380"},{"analysis_date":"2024-01-02"}]`, 2, "2024-01-03", false},
		{"garbage", `not json`, 0, "", true},
		{"broken array", `[{"analysis_date":`, 0, "", true},
		{"non-record element", `[{"analysis_date":"2024-01-02"}, 7]`, 0, "", true},
		{"empty", ``, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, store := newTestRepo()
			ctx := context.Background()
			_ = store.Put(ctx, StrategyKey, []byte(tt.body))

			got, err := repo.LoadStrategies(ctx)
			if tt.unreadable {
				if !errors.Is(err, ErrStrategiesUnreadable) {
					t.Fatalf("expected ErrStrategiesUnreadable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d records, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen > 0 && got[0].AnalysisDate != tt.first {
				t.Fatalf("unexpected first record %+v", got[0])
			}
		})
	}
}

func TestSaveStrategiesIndented(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()
	history := []domain.StrategyRecord{{AnalysisDate: "2024-01-02", BuyPrice: 1300, SellPrice: 1400, Summary: "hold"}}

	if err := repo.SaveStrategies(ctx, history); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _ := store.Get(ctx, StrategyKey)
	if !strings.HasPrefix(string(raw), "[\n  {\n    \"analysis_date\": \"2024-01-02\"") {
		t.Fatalf("expected two-space indented array, got %s", raw)
	}

	if err := repo.SaveStrategies(ctx, nil); err != nil {
		t.Fatalf("save nil: %v", err)
	}
	raw, _ = store.Get(ctx, StrategyKey)
	if string(raw) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

func TestPromptTemplate(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	tpl, err := repo.LoadPromptTemplate(ctx)
	if err != nil || tpl != "" {
		t.Fatalf("expected empty template, got %q (%v)", tpl, err)
	}
	if err := repo.SavePromptTemplate(ctx, "usdt: {{usdtHistory}}"); err != nil {
		t.Fatalf("save: %v", err)
	}
	tpl, _ = repo.LoadPromptTemplate(ctx)
	if tpl != "usdt: {{usdtHistory}}" {
		t.Fatalf("unexpected template %q", tpl)
	}
}

func TestOptimizeResult(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	var dst map[string]float64
	ok, err := repo.LoadOptimizeResult(ctx, &dst)
	if err != nil || ok {
		t.Fatalf("expected nothing stored, got ok=%v err=%v", ok, err)
	}
	if err := repo.SaveOptimizeResult(ctx, map[string]float64{"total_return": 12.5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err = repo.LoadOptimizeResult(ctx, &dst)
	if err != nil || !ok || dst["total_return"] != 12.5 {
		t.Fatalf("unexpected result %v ok=%v err=%v", dst, ok, err)
	}
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store down")
}

func (failingStore) Put(ctx context.Context, key string, body []byte) error {
	return errors.New("store down")
}
