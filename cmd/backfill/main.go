package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"kimchi-signal/internal/app"
	"kimchi-signal/internal/config"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDays = 365

	targetRates   = "rates"
	targetUSDT    = "usdt"
	targetBTC     = "btc"
	targetPremium = "premium"
)

// Premium reads the stored USDT and rate series, so it always runs last.
var targetOrder = []string{targetRates, targetUSDT, targetBTC, targetPremium}

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	buildAppFunc   = app.Build
)

type options struct {
	days    int
	targets []string
}

type refresher interface {
	RefreshRates(ctx context.Context, days int) (domain.TimeSeries, error)
	RefreshUSDT(ctx context.Context, days int) (domain.TimeSeries, error)
	RefreshBTC(ctx context.Context, days int) (map[string]domain.TimeSeries, error)
	RefreshPremium(ctx context.Context, days int) (service.PremiumRefresh, error)
}

func main() {
	loadEnvFunc()

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}
	cfg := loadConfigFunc()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	tracer := trace.NewNoopTracerProvider().Tracer("backfill")
	a, err := buildAppFunc(ctx, cfg, tracer)
	if err != nil {
		log.Fatalf("build services: %v", err)
	}
	defer a.Close()

	log.Printf("starting backfill: days=%d targets=%s store=%s", opts.days, strings.Join(opts.targets, ","), cfg.StoreBackend)
	if err := runBackfill(ctx, a.Pipeline, opts); err != nil {
		log.Fatalf("backfill: %v", err)
	}
	log.Printf("backfill complete: targets=%d days=%d", len(opts.targets), opts.days)
}

func runBackfill(ctx context.Context, r refresher, opts options) error {
	for _, target := range opts.targets {
		var count int
		switch target {
		case targetRates:
			ts, err := r.RefreshRates(ctx, opts.days)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			count = len(ts)
		case targetUSDT:
			ts, err := r.RefreshUSDT(ctx, opts.days)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			count = len(ts)
		case targetBTC:
			out, err := r.RefreshBTC(ctx, opts.days)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			for _, ts := range out {
				count += len(ts)
			}
		case targetPremium:
			out, err := r.RefreshPremium(ctx, opts.days)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			count = len(out.Premium)
		}
		log.Printf("backfilled %s: %d points", target, count)
	}
	return nil
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	days := fs.Int("days", defaultBackfillDays(getenv), "number of historical days to backfill (default from BACKFILL_DAYS, else 365)")
	targetsRaw := fs.String("targets", strings.Join(targetOrder, ","), "comma-separated series to backfill: rates, usdt, btc, premium")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *days <= 0 || *days > service.MaxRefreshDays {
		return options{}, fmt.Errorf("days must be between 1 and %d", service.MaxRefreshDays)
	}

	targets, err := normalizeTargets(*targetsRaw)
	if err != nil {
		return options{}, err
	}
	return options{days: *days, targets: targets}, nil
}

func defaultBackfillDays(getenv func(string) string) int {
	v := strings.TrimSpace(getenv("BACKFILL_DAYS"))
	if v == "" {
		return defaultDays
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > service.MaxRefreshDays {
		return defaultDays
	}
	return n
}

// normalizeTargets dedups and puts the requested targets in run order.
func normalizeTargets(raw string) ([]string, error) {
	requested := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		target := strings.ToLower(strings.TrimSpace(part))
		if target == "" {
			continue
		}
		if !isTarget(target) {
			return nil, fmt.Errorf("unsupported target: %s", target)
		}
		requested[target] = struct{}{}
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("targets cannot be empty")
	}

	out := make([]string, 0, len(requested))
	for _, target := range targetOrder {
		if _, ok := requested[target]; ok {
			out = append(out, target)
		}
	}
	return out, nil
}

func isTarget(v string) bool {
	for _, t := range targetOrder {
		if t == v {
			return true
		}
	}
	return false
}
