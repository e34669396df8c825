package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"kimchi-signal/internal/app"
	"kimchi-signal/internal/bot"
	"kimchi-signal/internal/chart"
	"kimchi-signal/internal/config"
	"kimchi-signal/internal/handler"
	"kimchi-signal/internal/job"
	"kimchi-signal/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "kimchi-signal/docs"
)

const shutdownGrace = 5 * time.Second

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	startTelegramBotFunc   = bot.StartTelegramBot
	newSchedulerFunc       = job.NewScheduler
	startSchedulerFunc     = func(s *job.Scheduler, ctx context.Context) { go s.Start(ctx) }
	newMonitorPollerFunc   = job.NewMonitorPoller
	startMonitorPollerFunc = func(p *job.MonitorPoller, ctx context.Context) { go p.Start(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Kimchi Signal API
// @version         1.0
// @description     Kimchi premium pipeline, thresholds, strategies and monitoring.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	a, err := buildAppFunc(ctx, cfg, tracer)
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}
	defer a.Close()

	if err := startWorkers(ctx, tracer, cfg, a); err != nil {
		log.Fatalf("failed to start background jobs: %v", err)
	}

	h := newHandlerFunc(tracer, a.Pipeline, a.Strategy, a.Monitor, a.Optimize, a.Anomaly)
	srv := &http.Server{
		Addr:              httpAddrFromEnv(),
		Handler:           buildRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	log.Printf("HTTP API listening on %s", srv.Addr)

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	// Stops the scheduler, the poller and the ticker stream.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	log.Println("Server exiting")
}

// startWorkers launches the cron scheduler and, when the Telegram bot is up,
// the monitor poller that feeds its alert subscribers.
func startWorkers(ctx context.Context, tracer trace.Tracer, cfg *config.Config, a *app.App) error {
	alerts := startTelegramBotFunc(cfg.TelegramBotToken, bot.Services{
		Pipeline: a.Pipeline,
		Strategy: a.Strategy,
		Monitor:  a.Monitor,
		Charts:   chart.NewRenderer(),
	})

	scheduler, err := newSchedulerFunc(tracer, a.Pipeline, a.Strategy, job.SchedulerConfig{
		RefreshCron: cfg.RefreshCron,
		AnalyzeCron: cfg.AnalyzeCron,
		RefreshDays: cfg.RefreshDays,
	})
	if err != nil {
		return err
	}
	startSchedulerFunc(scheduler, ctx)

	if alerts == nil {
		log.Println("Telegram bot disabled, monitor alerts are off")
		return nil
	}
	interval := time.Duration(cfg.MonitorPollSecs) * time.Second
	startMonitorPollerFunc(newMonitorPollerFunc(tracer, a.Monitor, alerts, interval), ctx)
	return nil
}

type routeRegistrar interface {
	RegisterRoutes(r *gin.Engine)
}

func buildRouter(h routeRegistrar) *gin.Engine {
	r := newRouterFunc()
	r.Use(cors.New(corsConfig()))
	r.Use(otelgin.Middleware(tracing.ServiceName))
	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
	if origins == "" || origins == "*" {
		cfg.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	return cfg
}
