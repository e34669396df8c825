package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/config"
)

func sampleReport() backtest.Report {
	best := backtest.Params{BuyTrendCoefficient: 0.5, SellTrendCoefficient: 0.3, MACDWeight: 0.2, RSIWeight: 0.25, BBWeight: 0.1, MAWeight: 0.2, AdjustmentFactor: 0.05}
	return backtest.Report{
		BestParams:        best,
		BestResult:        backtest.Result{TotalReturn: 4.5678, Trades: 3, WinRate: 66.6667, MaxDrawdown: 1.234},
		BestScore:         4.2508,
		TotalCombinations: 12,
		TopResults: []backtest.Trial{
			{Params: best, Result: backtest.Result{TotalReturn: 4.5678, Trades: 3}},
			{Params: backtest.Params{BuyTrendCoefficient: 1}, Result: backtest.Result{TotalReturn: 2.1, Trades: 1}},
		},
	}
}

func TestParseOptionsDefaultsFromConfig(t *testing.T) {
	cfg := &config.Config{OptimizeMaxCombinations: 500, OptimizeTopN: 10, OptimizeWorkers: 2}

	opts, err := parseOptions(nil, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.maxCombinations != 500 || opts.topN != 10 || opts.workers != 2 || opts.jsonOutput || opts.latest {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	opts, err = parseOptions([]string{"-max", "50", "-top", "3", "-json", "-latest"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.maxCombinations != 50 || opts.topN != 3 || !opts.jsonOutput || !opts.latest {
		t.Fatalf("unexpected flags %+v", opts)
	}
}

func TestParseOptionsValidation(t *testing.T) {
	cfg := &config.Config{OptimizeMaxCombinations: 500, OptimizeTopN: 10}
	for _, args := range [][]string{{"-max", "0"}, {"-top", "-1"}, {"-workers", "-2"}, {"-bogus"}} {
		if _, err := parseOptions(args, cfg); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, sampleReport())
	out := buf.String()

	for _, want := range []string{"Evaluated 12 combinations", "4.25", "Best parameters", "buy_trend_coefficient", "4.57", "66.67", "Top trials by return"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderReportWithoutTrials(t *testing.T) {
	report := sampleReport()
	report.TopResults = nil

	var buf bytes.Buffer
	renderReport(&buf, report)
	if strings.Contains(buf.String(), "Top trials") {
		t.Fatalf("expected no trials table:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded backtest.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.TotalCombinations != 12 || len(decoded.TopResults) != 2 {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}
}
