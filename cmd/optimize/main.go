package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"kimchi-signal/internal/app"
	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/config"
	"kimchi-signal/internal/series"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	buildAppFunc   = app.Build
)

type options struct {
	maxCombinations int
	topN            int
	workers         int
	jsonOutput      bool
	latest          bool
}

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	opts, err := parseOptions(os.Args[1:], cfg)
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}
	cfg.OptimizeMaxCombinations = opts.maxCombinations
	cfg.OptimizeTopN = opts.topN
	cfg.OptimizeWorkers = opts.workers

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	tracer := trace.NewNoopTracerProvider().Tracer("optimize")
	a, err := buildAppFunc(ctx, cfg, tracer)
	if err != nil {
		log.Fatalf("build services: %v", err)
	}
	defer a.Close()

	var report backtest.Report
	if opts.latest {
		var ok bool
		report, ok, err = a.Optimize.Latest(ctx)
		if err == nil && !ok {
			log.Fatal("no optimizer report stored yet")
		}
	} else {
		log.Printf("optimizing: max_combinations=%d top_n=%d workers=%d", opts.maxCombinations, opts.topN, opts.workers)
		report, err = a.Optimize.Run(ctx)
	}
	if err != nil {
		log.Fatalf("optimize: %v", err)
	}

	if opts.jsonOutput {
		if err := writeJSON(os.Stdout, report); err != nil {
			log.Fatalf("write report: %v", err)
		}
		return
	}
	renderReport(os.Stdout, report)
}

func parseOptions(args []string, cfg *config.Config) (options, error) {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	maxCombinations := fs.Int("max", cfg.OptimizeMaxCombinations, "maximum parameter combinations to evaluate")
	topN := fs.Int("top", cfg.OptimizeTopN, "number of top trials to keep")
	workers := fs.Int("workers", cfg.OptimizeWorkers, "parallel backtests (0 uses every CPU)")
	jsonOutput := fs.Bool("json", false, "print the report as JSON")
	latest := fs.Bool("latest", false, "print the last stored report without running")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *maxCombinations <= 0 {
		return options{}, fmt.Errorf("max must be > 0")
	}
	if *topN <= 0 {
		return options{}, fmt.Errorf("top must be > 0")
	}
	if *workers < 0 {
		return options{}, fmt.Errorf("workers must be >= 0")
	}
	return options{
		maxCombinations: *maxCombinations,
		topN:            *topN,
		workers:         *workers,
		jsonOutput:      *jsonOutput,
		latest:          *latest,
	}, nil
}

func writeJSON(w io.Writer, report backtest.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func renderReport(w io.Writer, report backtest.Report) {
	fmt.Fprintf(w, "Evaluated %d combinations, best score %s\n\n",
		report.TotalCombinations, series.Format(report.BestScore, series.DisplayPlaces))

	best := table.NewWriter()
	best.SetOutputMirror(w)
	best.SetTitle("Best parameters")
	best.AppendHeader(table.Row{"Parameter", "Value"})
	for _, row := range paramRows(report.BestParams) {
		best.AppendRow(row)
	}
	best.AppendSeparator()
	best.AppendRow(table.Row{"total return %", series.Format(report.BestResult.TotalReturn, series.DisplayPlaces)})
	best.AppendRow(table.Row{"trades", report.BestResult.Trades})
	best.AppendRow(table.Row{"win rate %", series.Format(report.BestResult.WinRate, series.DisplayPlaces)})
	best.AppendRow(table.Row{"max drawdown %", series.Format(report.BestResult.MaxDrawdown, series.DisplayPlaces)})
	best.SetStyle(table.StyleLight)
	best.Render()

	if len(report.TopResults) == 0 {
		return
	}
	fmt.Fprintln(w)

	top := table.NewWriter()
	top.SetOutputMirror(w)
	top.SetTitle("Top trials by return")
	top.AppendHeader(table.Row{"#", "Return %", "Trades", "Win %", "MDD %", "Buy trend", "Sell trend", "MACD", "RSI", "BB", "MA", "Adjust"})
	for i, trial := range report.TopResults {
		p := trial.Params
		top.AppendRow(table.Row{
			i + 1,
			series.Format(trial.Result.TotalReturn, series.DisplayPlaces),
			trial.Result.Trades,
			series.Format(trial.Result.WinRate, series.DisplayPlaces),
			series.Format(trial.Result.MaxDrawdown, series.DisplayPlaces),
			p.BuyTrendCoefficient, p.SellTrendCoefficient,
			p.MACDWeight, p.RSIWeight, p.BBWeight, p.MAWeight,
			p.AdjustmentFactor,
		})
	}
	top.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	top.SetStyle(table.StyleLight)
	top.Render()
}

func paramRows(p backtest.Params) []table.Row {
	return []table.Row{
		{"buy_trend_coefficient", p.BuyTrendCoefficient},
		{"sell_trend_coefficient", p.SellTrendCoefficient},
		{"macd_weight", p.MACDWeight},
		{"rsi_weight", p.RSIWeight},
		{"bb_weight", p.BBWeight},
		{"ma_weight", p.MAWeight},
		{"adjustment_factor", p.AdjustmentFactor},
	}
}
