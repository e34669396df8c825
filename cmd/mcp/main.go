package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"kimchi-signal/internal/app"
	"kimchi-signal/internal/config"
	mcpserver "kimchi-signal/internal/mcp"
	"kimchi-signal/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	maxHTTPBodyBytes int64 = 1 << 20
	shutdownGrace          = 5 * time.Second
)

type transport string

const (
	transportStdio transport = "stdio"
	transportHTTP  transport = "http"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initTracerFunc    = tracing.InitTracer
	buildAppFunc      = app.Build
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler
	runStdioFunc      = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	listenFunc        = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownFunc      = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	notifySignalsFunc = ossignal.Notify
	awaitSignalFunc   = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	mode, err := parseTransport(cfg.MCPTransport)
	if err != nil {
		log.Fatal(err)
	}
	var addr string
	if mode == transportHTTP {
		// Fail before any store or tracer is opened.
		if addr, err = httpAddr(cfg); err != nil {
			log.Fatal(err)
		}
	}

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

	srv := newMCPServerFunc(tracer, services(a), mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	switch mode {
	case transportStdio:
		err = runStdioFunc(ctx, srv)
	case transportHTTP:
		handler := newMCPHandlerFunc(srv, mcpserver.HTTPHandlerConfig{
			AuthToken:       cfg.MCPAuthToken,
			RateLimitPerMin: cfg.MCPRateLimitPerMin,
			MaxBodyBytes:    maxHTTPBodyBytes,
		})
		err = serveHTTP(cancel, addr, handler)
	}
	if err != nil {
		log.Fatalf("mcp %s server failed: %v", mode, err)
	}
}

func services(a *app.App) mcpserver.Services {
	return mcpserver.Services{
		Pipeline: a.Pipeline,
		Strategy: a.Strategy,
		Monitor:  a.Monitor,
		Anomaly:  a.Anomaly,
		Optimize: a.Optimize,
	}
}

func parseTransport(raw string) (transport, error) {
	switch t := transport(strings.ToLower(strings.TrimSpace(raw))); t {
	case "", transportStdio:
		return transportStdio, nil
	case transportHTTP:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported MCP_TRANSPORT: %s", raw)
	}
}

// httpAddr validates the settings the streamable HTTP transport needs and
// returns its listen address.
func httpAddr(cfg *config.Config) (string, error) {
	if !cfg.MCPHTTPEnabled {
		return "", errors.New("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return "", errors.New("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}
	if cfg.MCPHTTPPort <= 0 || cfg.MCPHTTPPort > 65535 {
		return "", fmt.Errorf("invalid MCP_HTTP_PORT: %d", cfg.MCPHTTPPort)
	}
	return net.JoinHostPort(cfg.MCPHTTPBind, strconv.Itoa(cfg.MCPHTTPPort)), nil
}

// serveHTTP runs the handler until SIGINT or SIGTERM, then drains in-flight
// calls within the shutdown grace period.
func serveHTTP(cancel context.CancelFunc, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := listenFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mcp http listener stopped: %v", err)
		}
	}()
	log.Printf("mcp http server listening on %s", addr)

	quit := make(chan os.Signal, 1)
	notifySignalsFunc(quit, syscall.SIGINT, syscall.SIGTERM)
	awaitSignalFunc(quit)
	cancel()

	ctx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	if err := shutdownFunc(srv, ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}
