package handler

import (
	"context"
	"net/http"
	"strings"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSeries godoc
// @Summary      Get a stored daily series
// @Description  Returns a stored series keyed by KST date, rounded to 2 decimals
// @Tags         series
// @Produce      json
// @Param        name  path   string  true   "Series name (kimchi-premium, usdt-history, rate-history, btc-krw-history, btc-usdt-history)"
// @Param        days  query  int     false  "Limit to the last N days (default all, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/series/{name} [get]
func (h *Handler) GetSeries(c *gin.Context) {
	if h.pipelineService == nil {
		unavailable(c, "pipeline service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-series")
	defer span.End()

	name := strings.ToLower(strings.TrimSpace(c.Param("name")))
	span.SetAttributes(attribute.String("series", name))
	if !domain.IsSupportedSeries(name) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "unsupported series: " + name,
			"supported_series": domain.SupportedSeries,
		})
		return
	}
	days, ok := intQuery(c, "days", 0, service.MaxRefreshDays)
	if !ok {
		return
	}

	ts, err := h.pipelineService.Series(ctx, name, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "data": series.RoundSeries(ts)})
}

// GetThresholds godoc
// @Summary      Get premium thresholds
// @Description  Returns buy/sell premium thresholds per KST date
// @Tags         thresholds
// @Produce      json
// @Param        days  query  int  false  "Limit to the last N days (default all, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/thresholds [get]
func (h *Handler) GetThresholds(c *gin.Context) {
	if h.pipelineService == nil {
		unavailable(c, "pipeline service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-thresholds")
	defer span.End()

	days, ok := intQuery(c, "days", 0, service.MaxRefreshDays)
	if !ok {
		return
	}
	ts, err := h.pipelineService.Thresholds(ctx, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": series.RoundThresholds(ts)})
}

// RecomputeThresholds godoc
// @Summary      Recompute thresholds
// @Description  Rebuilds the threshold series from the stored premium history
// @Tags         thresholds
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/thresholds/recompute [post]
func (h *Handler) RecomputeThresholds(c *gin.Context) {
	if h.pipelineService == nil {
		unavailable(c, "pipeline service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.recompute-thresholds")
	defer span.End()

	ts, err := h.pipelineService.RecomputeThresholds(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ts), "data": series.RoundThresholds(ts)})
}

// RefreshAll godoc
// @Summary      Run the full refresh
// @Description  Refreshes rates, then USDT, then premium and thresholds
// @Tags         refresh
// @Produce      json
// @Param        days  query  int  false  "Lookback in days (default 1, max 1000)"
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/refresh [post]
func (h *Handler) RefreshAll(c *gin.Context) {
	h.refresh(c, "handler.refresh-all", func(ctx context.Context, days int) (any, error) {
		if err := h.pipelineService.RefreshAll(ctx, days); err != nil {
			return nil, err
		}
		return gin.H{"status": "ok", "days": days}, nil
	})
}

// RefreshRates godoc
// @Summary      Refresh the USD/KRW rate
// @Tags         refresh
// @Produce      json
// @Param        days  query  int  false  "Lookback in days (default 1, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/refresh/rates [post]
func (h *Handler) RefreshRates(c *gin.Context) {
	h.refresh(c, "handler.refresh-rates", func(ctx context.Context, days int) (any, error) {
		ts, err := h.pipelineService.RefreshRates(ctx, days)
		if err != nil {
			return nil, err
		}
		return gin.H{"data": series.RoundSeries(ts)}, nil
	})
}

// RefreshUSDT godoc
// @Summary      Refresh the KRW-USDT close
// @Tags         refresh
// @Produce      json
// @Param        days  query  int  false  "Lookback in days (default 1, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/refresh/usdt [post]
func (h *Handler) RefreshUSDT(c *gin.Context) {
	h.refresh(c, "handler.refresh-usdt", func(ctx context.Context, days int) (any, error) {
		ts, err := h.pipelineService.RefreshUSDT(ctx, days)
		if err != nil {
			return nil, err
		}
		return gin.H{"data": series.RoundSeries(ts)}, nil
	})
}

// RefreshBTC godoc
// @Summary      Refresh BTC prices
// @Description  Refreshes Upbit KRW-BTC and Bybit BTCUSDT closes
// @Tags         refresh
// @Produce      json
// @Param        days  query  int  false  "Lookback in days (default 1, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/refresh/btc [post]
func (h *Handler) RefreshBTC(c *gin.Context) {
	h.refresh(c, "handler.refresh-btc", func(ctx context.Context, days int) (any, error) {
		out, err := h.pipelineService.RefreshBTC(ctx, days)
		if err != nil {
			return nil, err
		}
		data := make(map[string]domain.TimeSeries, len(out))
		for name, ts := range out {
			data[name] = series.RoundSeries(ts)
		}
		return gin.H{"data": data}, nil
	})
}

// RefreshPremium godoc
// @Summary      Refresh premium and thresholds
// @Description  Fetches BTC prices and rates, stores the premium and recomputes thresholds
// @Tags         refresh
// @Produce      json
// @Param        days  query  int  false  "Lookback in days (default 1, max 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/refresh/premium [post]
func (h *Handler) RefreshPremium(c *gin.Context) {
	h.refresh(c, "handler.refresh-premium", func(ctx context.Context, days int) (any, error) {
		out, err := h.pipelineService.RefreshPremium(ctx, days)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"premium":    series.RoundSeries(out.Premium),
			"thresholds": series.RoundThresholds(out.Thresholds),
		}, nil
	})
}

func (h *Handler) refresh(c *gin.Context, spanName string, run func(ctx context.Context, days int) (any, error)) {
	if h.pipelineService == nil {
		unavailable(c, "pipeline service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), spanName)
	defer span.End()

	days, ok := intQuery(c, "days", service.DefaultRefreshDays, service.MaxRefreshDays)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("days", days))

	body, err := run(ctx, days)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}
