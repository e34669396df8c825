package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, svc Services) {
	server.AddResource(&mcp.Resource{
		URI:         "series://supported",
		Name:        "supported-series",
		Description: "Names of the stored daily series",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, domain.SupportedSeries)
	})

	server.AddResource(&mcp.Resource{
		URI:         "anomaly://recent",
		Name:        "anomaly-recent",
		Description: "Isolation forest scores for the last two weeks of premium",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc.Anomaly == nil {
			return nil, fmt.Errorf("anomaly service unavailable")
		}
		report, err := svc.Anomaly.Scan(ctx, service.DefaultAnomalyDays)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, anomalyOutput(report))
	})

	server.AddResource(&mcp.Resource{
		URI:         "thresholds://latest",
		Name:        "thresholds-latest",
		Description: "Most recent buy/sell premium threshold record",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc.Pipeline == nil {
			return nil, fmt.Errorf("pipeline service unavailable")
		}
		ts, err := svc.Pipeline.Thresholds(ctx, 0)
		if err != nil {
			return nil, err
		}
		var out thresholdLatestOutput
		if d, rec, ok := series.RoundThresholds(ts).Latest(); ok {
			out.Date = d
			out.Threshold = &rec
		}
		return jsonResource(req.Params.URI, out)
	})

	server.AddResource(&mcp.Resource{
		URI:         "strategy://latest",
		Name:        "strategy-latest",
		Description: "Strategy record with the most recent analysis date",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc.Strategy == nil {
			return nil, fmt.Errorf("strategy service unavailable")
		}
		rec, err := svc.Strategy.Latest(ctx)
		if errors.Is(err, service.ErrNoStrategy) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, rec)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "series://{name}{?days}",
		Name:        "series-by-name",
		Description: "Stored daily series by name; optional days query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc.Pipeline == nil {
			return nil, fmt.Errorf("pipeline service unavailable")
		}

		name, days, err := parseSeriesURI(req.Params.URI)
		if err != nil {
			return nil, err
		}

		ts, err := svc.Pipeline.Series(ctx, name, days)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, seriesGetOutput{Name: name, Days: days, Data: series.RoundSeries(ts)})
	})
}

// parseSeriesURI reads series://{name}?days=N. Unknown schemes are reported as
// missing resources; a bad name or days value is a plain error.
func parseSeriesURI(uri string) (string, int, error) {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "series" {
		return "", 0, mcp.ResourceNotFoundError(uri)
	}
	name, err := normalizeSeriesName(parsed.Host)
	if err != nil {
		return "", 0, err
	}
	raw := strings.TrimSpace(parsed.Query().Get("days"))
	if raw == "" {
		return name, defaultSeriesDays, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid days: %s", raw)
	}
	return name, normalizeDays(n, defaultSeriesDays), nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
