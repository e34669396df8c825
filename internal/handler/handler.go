package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kimchi-signal/internal/chart"
	"kimchi-signal/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStrategyLimit = 30
	maxStrategyLimit     = 365
)

type Handler struct {
	tracer          trace.Tracer
	pipelineService *service.PipelineService
	strategyService *service.StrategyService
	monitorService  *service.MonitorService
	optimizeService *service.OptimizeService
	anomalyService  *service.AnomalyService
	charts          *chart.Renderer
}

func New(
	tracer trace.Tracer,
	pipelineService *service.PipelineService,
	strategyService *service.StrategyService,
	monitorService *service.MonitorService,
	optimizeService *service.OptimizeService,
	anomalyService *service.AnomalyService,
) *Handler {
	return &Handler{
		tracer:          tracer,
		pipelineService: pipelineService,
		strategyService: strategyService,
		monitorService:  monitorService,
		optimizeService: optimizeService,
		anomalyService:  anomalyService,
		charts:          chart.NewRenderer(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/series/:name", h.GetSeries)
	api.GET("/thresholds", h.GetThresholds)
	api.GET("/chart/premium", h.GetPremiumChart)
	api.POST("/thresholds/recompute", h.RecomputeThresholds)

	api.POST("/refresh", h.RefreshAll)
	api.POST("/refresh/rates", h.RefreshRates)
	api.POST("/refresh/usdt", h.RefreshUSDT)
	api.POST("/refresh/btc", h.RefreshBTC)
	api.POST("/refresh/premium", h.RefreshPremium)

	api.GET("/strategy", h.GetStrategyHistory)
	api.GET("/strategy/latest", h.GetLatestStrategy)
	api.POST("/strategy/analyze", h.AnalyzeStrategy)

	api.GET("/monitoring", h.GetMonitoring)

	api.GET("/optimize", h.GetOptimizeResult)
	api.POST("/optimize", h.RunOptimize)

	api.GET("/anomalies", h.GetAnomalies)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnsupportedSeries):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoStrategy):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " unavailable"})
}

// intQuery parses an optional positive integer query parameter. Missing yields
// def; anything outside [1, max] is reported as invalid.
func intQuery(c *gin.Context, key string, def, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be between 1 and " + strconv.Itoa(max)})
		return 0, false
	}
	return n, true
}

func boolQuery(c *gin.Context, key string) (bool, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be true or false"})
		return false, false
	}
	return v, true
}
