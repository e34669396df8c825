package handler

import (
	"net/http"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetStrategyHistory godoc
// @Summary      List strategy records
// @Description  Returns stored strategy records, newest first
// @Tags         strategy
// @Produce      json
// @Param        limit  query  int  false  "Number of records (default 30, max 365)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/strategy [get]
func (h *Handler) GetStrategyHistory(c *gin.Context) {
	if h.strategyService == nil {
		unavailable(c, "strategy service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-strategy-history")
	defer span.End()

	limit, ok := intQuery(c, "limit", defaultStrategyLimit, maxStrategyLimit)
	if !ok {
		return
	}
	history, err := h.strategyService.History(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": history})
}

// GetLatestStrategy godoc
// @Summary      Latest strategy record
// @Description  Returns the record with the most recent analysis date
// @Tags         strategy
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/strategy/latest [get]
func (h *Handler) GetLatestStrategy(c *gin.Context) {
	if h.strategyService == nil {
		unavailable(c, "strategy service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-strategy")
	defer span.End()

	rec, err := h.strategyService.Latest(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AnalyzeStrategy godoc
// @Summary      Generate today's strategy
// @Description  Asks the model for today's buy/sell prices unless a record for today exists and force is false
// @Tags         strategy
// @Produce      json
// @Param        force  query  bool  false  "Regenerate even if today's record exists"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/strategy/analyze [post]
func (h *Handler) AnalyzeStrategy(c *gin.Context) {
	if h.strategyService == nil {
		unavailable(c, "strategy service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-strategy")
	defer span.End()

	force, ok := boolQuery(c, "force")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Bool("force", force))

	outcome, err := h.strategyService.Analyze(ctx, force)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	if outcome.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"skipped": true,
			"message": "strategy for " + outcome.Today + " already exists",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"skipped": false, "strategy": outcome.Record})
}

type monitoringResponse struct {
	USDTPrice          float64                 `json:"usdt_price"`
	BuyPrice           float64                 `json:"buy_price"`
	SellPrice          float64                 `json:"sell_price"`
	Action             domain.MonitorAction    `json:"action"`
	LatestStrategyDate string                  `json:"latest_strategy_date"`
	ThresholdDate      string                  `json:"threshold_date,omitempty"`
	Threshold          *domain.ThresholdRecord `json:"threshold,omitempty"`
	PremiumDate        string                  `json:"premium_date,omitempty"`
	Premium            *float64                `json:"premium,omitempty"`
}

// GetMonitoring godoc
// @Summary      Live buy/sell/hold check
// @Description  Compares the live KRW-USDT price with the latest strategy
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/monitoring [get]
func (h *Handler) GetMonitoring(c *gin.Context) {
	if h.monitorService == nil {
		unavailable(c, "monitor service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-monitoring")
	defer span.End()

	result, err := h.monitorService.Check(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("action", string(result.Action)))

	resp := monitoringResponse{
		USDTPrice:          series.Round(result.USDTPrice, series.DisplayPlaces),
		BuyPrice:           series.Round(result.BuyPrice, series.DisplayPlaces),
		SellPrice:          series.Round(result.SellPrice, series.DisplayPlaces),
		Action:             result.Action,
		LatestStrategyDate: result.LatestStrategyDate,
		ThresholdDate:      result.ThresholdDate,
		PremiumDate:        result.PremiumDate,
	}
	if result.Threshold != nil {
		rounded := series.RoundThresholds(domain.ThresholdSeries{result.ThresholdDate: *result.Threshold})[result.ThresholdDate]
		resp.Threshold = &rounded
	}
	if result.Premium != nil {
		p := series.Round(*result.Premium, series.DisplayPlaces)
		resp.Premium = &p
	}
	c.JSON(http.StatusOK, resp)
}

// RunOptimize godoc
// @Summary      Optimize engine parameters
// @Description  Backtests a grid of engine parameters over the stored USDT and rate history and stores the report
// @Tags         optimize
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/optimize [post]
func (h *Handler) RunOptimize(c *gin.Context) {
	if h.optimizeService == nil {
		unavailable(c, "optimize service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-optimize")
	defer span.End()

	report, err := h.optimizeService.Run(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetOptimizeResult godoc
// @Summary      Last optimizer report
// @Tags         optimize
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/optimize [get]
func (h *Handler) GetOptimizeResult(c *gin.Context) {
	if h.optimizeService == nil {
		unavailable(c, "optimize service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-optimize-result")
	defer span.End()

	report, ok, err := h.optimizeService.Latest(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no optimizer report stored"})
		return
	}
	c.JSON(http.StatusOK, report)
}
