package handler

import (
	"bytes"
	"net/http"

	"kimchi-signal/internal/chart"
	"kimchi-signal/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultChartDays = 90
	maxChartDays     = 1000
)

// GetPremiumChart godoc
// @Summary      Interactive premium chart
// @Description  Renders the premium and its buy/sell band as an HTML page
// @Tags         series
// @Produce      html
// @Param        days  query  int  false  "Days to plot (default 90, max 1000)"  default(90)
// @Success      200  {string}  string
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/chart/premium [get]
func (h *Handler) GetPremiumChart(c *gin.Context) {
	if h.pipelineService == nil {
		unavailable(c, "pipeline service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-premium-chart")
	defer span.End()

	days, ok := intQuery(c, "days", defaultChartDays, maxChartDays)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("chart.days", days))

	premium, err := h.pipelineService.Series(ctx, domain.SeriesPremium, days)
	if err != nil {
		writeError(c, err)
		return
	}
	thresholds, err := h.pipelineService.Thresholds(ctx, days)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(premium) < 2 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not enough premium history to chart"})
		return
	}

	var buf bytes.Buffer
	if err := h.charts.RenderPremiumHTML(&buf, chart.Input{Premium: premium, Thresholds: thresholds}); err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
