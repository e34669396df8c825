package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"kimchi-signal/internal/config"
	mcpserver "kimchi-signal/internal/mcp"
	"kimchi-signal/internal/signal"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestParseTransport(t *testing.T) {
	tests := []struct {
		raw     string
		want    transport
		wantErr bool
	}{
		{"", transportStdio, false},
		{" STDIO ", transportStdio, false},
		{"http", transportHTTP, false},
		{"sse", "", true},
	}
	for _, tt := range tests {
		got, err := parseTransport(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTransport(%q) = %q, %v; want %q, err %v", tt.raw, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestHTTPAddr(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr string
	}{
		{
			name:    "disabled",
			cfg:     config.Config{MCPAuthToken: "secret", MCPHTTPPort: 8090},
			wantErr: "MCP_HTTP_ENABLED",
		},
		{
			name:    "no token",
			cfg:     config.Config{MCPHTTPEnabled: true, MCPHTTPPort: 8090},
			wantErr: "MCP_AUTH_TOKEN is required",
		},
		{
			name:    "bad port",
			cfg:     config.Config{MCPHTTPEnabled: true, MCPAuthToken: "secret", MCPHTTPPort: 70000},
			wantErr: "invalid MCP_HTTP_PORT",
		},
		{
			name: "ok",
			cfg:  config.Config{MCPHTTPEnabled: true, MCPAuthToken: "secret", MCPHTTPBind: "127.0.0.1", MCPHTTPPort: 8090},
			want: "127.0.0.1:8090",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := httpAddr(&tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("httpAddr() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestMainRunsStdio(t *testing.T) {
	defer stubMain(t, "stdio")()

	ran := false
	orig := runStdioFunc
	runStdioFunc = func(ctx context.Context, server *sdkmcp.Server) error {
		ran = true
		return nil
	}
	defer func() { runStdioFunc = orig }()

	main()

	if !ran {
		t.Fatal("expected stdio transport to run")
	}
}

func TestMainServesHTTPUntilSignal(t *testing.T) {
	defer stubMain(t, "http")()

	listening := make(chan struct{})
	var drained bool
	origListen, origShutdown := listenFunc, shutdownFunc
	origNotify, origAwait := notifySignalsFunc, awaitSignalFunc
	listenFunc = func(srv *http.Server) error {
		if srv.Addr != "127.0.0.1:8090" {
			t.Errorf("unexpected listen address %q", srv.Addr)
		}
		close(listening)
		return http.ErrServerClosed
	}
	shutdownFunc = func(*http.Server, context.Context) error {
		drained = true
		return nil
	}
	notifySignalsFunc = func(chan<- os.Signal, ...os.Signal) {}
	awaitSignalFunc = func(<-chan os.Signal) { <-listening }
	defer func() {
		listenFunc, shutdownFunc = origListen, origShutdown
		notifySignalsFunc, awaitSignalFunc = origNotify, origAwait
	}()

	main()

	if !drained {
		t.Fatal("expected http server to be shut down after the signal")
	}
}

func stubMain(t *testing.T, mode string) func() {
	t.Helper()

	origLoadEnv, origLoadConfig := loadEnvFunc, loadConfigFunc
	origInitTracer := initTracerFunc
	origServer, origHandler := newMCPServerFunc, newMCPHandlerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			StoreBackend:          config.StoreMemory,
			Signal:                signal.DefaultConfig(),
			MCPTransport:          mode,
			MCPHTTPEnabled:        true,
			MCPHTTPBind:           "127.0.0.1",
			MCPHTTPPort:           8090,
			MCPAuthToken:          "secret",
			MCPRequestTimeoutSecs: 1,
			MCPRateLimitPerMin:    60,
		}
	}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newMCPServerFunc = func(tracer trace.Tracer, svc mcpserver.Services, cfg mcpserver.ServerConfig) *sdkmcp.Server {
		if svc.Pipeline == nil || svc.Strategy == nil || svc.Monitor == nil || svc.Anomaly == nil || svc.Optimize == nil {
			t.Errorf("expected all services wired, got %+v", svc)
		}
		if cfg.RequestTimeout != time.Second {
			t.Errorf("expected 1s request timeout, got %s", cfg.RequestTimeout)
		}
		return sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test-mcp"}, nil)
	}
	newMCPHandlerFunc = func(server *sdkmcp.Server, cfg mcpserver.HTTPHandlerConfig) http.Handler {
		if cfg.AuthToken != "secret" || cfg.RateLimitPerMin != 60 || cfg.MaxBodyBytes != maxHTTPBodyBytes {
			t.Errorf("unexpected handler config %+v", cfg)
		}
		return http.NotFoundHandler()
	}

	return func() {
		loadEnvFunc, loadConfigFunc = origLoadEnv, origLoadConfig
		initTracerFunc = origInitTracer
		newMCPServerFunc, newMCPHandlerFunc = origServer, origHandler
	}
}
