package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/signal"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxCombinations = 500
	DefaultTopN            = 10
)

// Grid lists candidate values per parameter. Combinations are generated depth
// first in field order, so the first MaxCombinations are deterministic.
type Grid struct {
	BuyTrendCoefficient  []float64
	SellTrendCoefficient []float64
	MACDWeight           []float64
	RSIWeight            []float64
	BBWeight             []float64
	MAWeight             []float64
	AdjustmentFactor     []float64
}

func DefaultGrid() Grid {
	trend := []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 1.5, 2.0}
	weight := []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.4, 0.5}
	return Grid{
		BuyTrendCoefficient:  trend,
		SellTrendCoefficient: trend,
		MACDWeight:           weight,
		RSIWeight:            weight,
		BBWeight:             weight,
		MAWeight:             weight,
		AdjustmentFactor:     []float64{0.02, 0.05, 0.08, 0.1, 0.15, 0.2, 0.25, 0.3},
	}
}

// Combinations returns at most limit parameter sets.
func (g Grid) Combinations(limit int) []Params {
	axes := [][]float64{
		g.BuyTrendCoefficient, g.SellTrendCoefficient,
		g.MACDWeight, g.RSIWeight, g.BBWeight, g.MAWeight,
		g.AdjustmentFactor,
	}
	for _, a := range axes {
		if len(a) == 0 {
			return nil
		}
	}

	var out []Params
	current := make([]float64, len(axes))
	var walk func(i int)
	walk = func(i int) {
		if len(out) >= limit {
			return
		}
		if i == len(axes) {
			out = append(out, Params{
				BuyTrendCoefficient:  current[0],
				SellTrendCoefficient: current[1],
				MACDWeight:           current[2],
				RSIWeight:            current[3],
				BBWeight:             current[4],
				MAWeight:             current[5],
				AdjustmentFactor:     current[6],
			})
			return
		}
		for _, v := range axes[i] {
			current[i] = v
			walk(i + 1)
			if len(out) >= limit {
				return
			}
		}
	}
	walk(0)
	return out
}

type Trial struct {
	Params Params `json:"params"`
	Result Result `json:"result"`
}

type Report struct {
	BestParams        Params  `json:"best_params"`
	BestResult        Result  `json:"best_result"`
	BestScore         float64 `json:"best_score"`
	TopResults        []Trial `json:"top_results"`
	TotalCombinations int     `json:"total_combinations"`
}

type Options struct {
	Grid            Grid
	MaxCombinations int
	TopN            int
	Workers         int
}

func (o Options) withDefaults() Options {
	if o.MaxCombinations <= 0 {
		o.MaxCombinations = DefaultMaxCombinations
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if len(o.Grid.BuyTrendCoefficient) == 0 {
		o.Grid = DefaultGrid()
	}
	return o
}

// Optimize backtests every grid combination on top of base. The best trial is
// the highest Score, ties going to the earlier combination; TopResults are
// ordered by TotalReturn.
func Optimize(ctx context.Context, usdt, rate domain.TimeSeries, base signal.Config, opts Options) (Report, error) {
	opts = opts.withDefaults()
	combos := opts.Grid.Combinations(opts.MaxCombinations)
	if len(combos) == 0 {
		return Report{}, fmt.Errorf("optimize: empty parameter grid")
	}

	trials := make([]Trial, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Run(usdt, rate, p.Apply(base))
			if err != nil {
				return err
			}
			trials[i] = Trial{Params: p, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("optimize: %w", err)
	}

	best := 0
	for i := 1; i < len(trials); i++ {
		if trials[i].Result.Score() > trials[best].Result.Score() {
			best = i
		}
	}

	ranked := append([]Trial(nil), trials...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.TotalReturn > ranked[j].Result.TotalReturn
	})
	if len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}

	return Report{
		BestParams:        trials[best].Params,
		BestResult:        trials[best].Result,
		BestScore:         trials[best].Result.Score(),
		TopResults:        ranked,
		TotalCombinations: len(trials),
	}, nil
}
