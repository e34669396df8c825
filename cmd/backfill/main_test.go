package main

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
)

func TestDefaultBackfillDays(t *testing.T) {
	getenv := func(key string) string { return "" }
	if got := defaultBackfillDays(getenv); got != defaultDays {
		t.Fatalf("expected default %d, got %d", defaultDays, got)
	}

	getenv = func(key string) string {
		if key == "BACKFILL_DAYS" {
			return "120"
		}
		return ""
	}
	if got := defaultBackfillDays(getenv); got != 120 {
		t.Fatalf("expected 120, got %d", got)
	}

	getenv = func(key string) string { return "5000" }
	if got := defaultBackfillDays(getenv); got != defaultDays {
		t.Fatalf("expected default for out-of-range value, got %d", got)
	}
}

func TestNormalizeTargets(t *testing.T) {
	targets, err := normalizeTargets("premium, USDT,rates,usdt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"rates", "usdt", "premium"}
	if !reflect.DeepEqual(targets, expected) {
		t.Fatalf("expected %v, got %v", expected, targets)
	}

	if _, err := normalizeTargets("candles"); err == nil {
		t.Fatal("expected unsupported target error")
	}
	if _, err := normalizeTargets(" , "); err == nil {
		t.Fatal("expected empty targets error")
	}
}

func TestParseOptions(t *testing.T) {
	getenv := func(string) string { return "" }

	opts, err := parseOptions([]string{"-days", "30", "-targets", "btc"}, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.days != 30 || !reflect.DeepEqual(opts.targets, []string{"btc"}) {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = parseOptions(nil, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.days != defaultDays || !reflect.DeepEqual(opts.targets, targetOrder) {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	if _, err := parseOptions([]string{"-days", "0"}, getenv); err == nil {
		t.Fatal("expected days validation error")
	}
	if _, err := parseOptions([]string{"-days", "1001"}, getenv); err == nil {
		t.Fatal("expected days upper bound error")
	}
}

type stubRefresher struct {
	calls []string
	days  []int
	fail  string
}

func (s *stubRefresher) record(target string, days int) error {
	s.calls = append(s.calls, target)
	s.days = append(s.days, days)
	if target == s.fail {
		return errors.New("upstream down")
	}
	return nil
}

func (s *stubRefresher) RefreshRates(ctx context.Context, days int) (domain.TimeSeries, error) {
	return domain.TimeSeries{"2024-01-04": 1300}, s.record(targetRates, days)
}

func (s *stubRefresher) RefreshUSDT(ctx context.Context, days int) (domain.TimeSeries, error) {
	return domain.TimeSeries{"2024-01-04": 1335}, s.record(targetUSDT, days)
}

func (s *stubRefresher) RefreshBTC(ctx context.Context, days int) (map[string]domain.TimeSeries, error) {
	return map[string]domain.TimeSeries{domain.SeriesBTCKRW: {}, domain.SeriesBTCUSDT: {}}, s.record(targetBTC, days)
}

func (s *stubRefresher) RefreshPremium(ctx context.Context, days int) (service.PremiumRefresh, error) {
	return service.PremiumRefresh{}, s.record(targetPremium, days)
}

func TestRunBackfillOrderAndErrors(t *testing.T) {
	r := &stubRefresher{}
	if err := runBackfill(context.Background(), r, options{days: 90, targets: targetOrder}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(r.calls, targetOrder) {
		t.Fatalf("unexpected call order %v", r.calls)
	}
	for _, d := range r.days {
		if d != 90 {
			t.Fatalf("expected days 90 on every call, got %v", r.days)
		}
	}

	r = &stubRefresher{fail: targetUSDT}
	err := runBackfill(context.Background(), r, options{days: 1, targets: targetOrder})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(r.calls) != 2 {
		t.Fatalf("expected backfill to stop at the failing target, got %v", r.calls)
	}
}
