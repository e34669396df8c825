package handler

import (
	"net/http"

	"kimchi-signal/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const maxAnomalyDays = 365

// GetAnomalies godoc
// @Summary      Score recent premium days for anomalies
// @Description  Fits an isolation forest on the stored premium history and scores the most recent days, newest first
// @Tags         anomalies
// @Produce      json
// @Param        days  query  int  false  "Days to score (default 14, max 365)"  default(14)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/anomalies [get]
func (h *Handler) GetAnomalies(c *gin.Context) {
	if h.anomalyService == nil {
		unavailable(c, "anomaly service")
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-anomalies")
	defer span.End()

	days, ok := intQuery(c, "days", service.DefaultAnomalyDays, maxAnomalyDays)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("anomaly.days", days))

	report, err := h.anomalyService.Scan(ctx, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
