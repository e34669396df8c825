package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 20 * time.Second
	// Analysis waits on the language model and refresh walks the FX pages.
	defaultSlowCallTimeout = 2 * time.Minute
)

// slowTools get SlowCallTimeout instead of RequestTimeout.
var slowTools = map[string]bool{
	"strategy_analyze": true,
	"pipeline_refresh": true,
}

type ServerConfig struct {
	RequestTimeout  time.Duration
	SlowCallTimeout time.Duration
}

func (c ServerConfig) timeoutFor(method string, req sdkmcp.Request) time.Duration {
	fast, slow := c.RequestTimeout, c.SlowCallTimeout
	if fast <= 0 {
		fast = defaultRequestTimeout
	}
	if slow <= 0 {
		slow = defaultSlowCallTimeout
	}
	if slow < fast {
		slow = fast
	}
	if method == "tools/call" && slowTools[toolName(req)] {
		return slow
	}
	return fast
}

func NewServer(tracer trace.Tracer, svc Services, cfg ServerConfig) *sdkmcp.Server {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "kimchi-signal-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Inspect the kimchi premium, its buy/sell thresholds, premium anomalies, the optimizer report and the daily USDT strategy. " +
			"Premium values are percentages; prices are KRW; dates are KST.",
		Logger: slog.Default(),
	})

	srv.AddReceivingMiddleware(deadlineMiddleware(cfg))
	if tracer != nil {
		srv.AddReceivingMiddleware(spanMiddleware(tracer))
	}

	registerTools(srv, svc)
	registerAnalyticsTools(srv, svc)
	registerResources(srv, svc)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

func deadlineMiddleware(cfg ServerConfig) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.timeoutFor(method, req))
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func spanMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, spanName(method, req),
				trace.WithAttributes(attribute.String("mcp.method", method)))
			defer span.End()

			if name := toolName(req); name != "" {
				span.SetAttributes(attribute.String("mcp.tool", name))
			}
			if rr, ok := req.(*sdkmcp.ReadResourceRequest); ok {
				span.SetAttributes(attribute.String("mcp.resource.uri", rr.Params.URI))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return result, err
		}
	}
}

func toolName(req sdkmcp.Request) string {
	if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
		return strings.TrimSpace(call.Params.Name)
	}
	return ""
}

// spanName gives tools and resources their own span names, e.g.
// "mcp.tool.anomaly_scan" or "mcp.resources.read".
func spanName(method string, req sdkmcp.Request) string {
	if method == "tools/call" {
		if name := toolName(req); name != "" {
			return "mcp.tool." + name
		}
	}
	return "mcp." + strings.ReplaceAll(method, "/", ".")
}
