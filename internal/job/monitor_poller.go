package job

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMonitorInterval = time.Minute

type MonitorChecker interface {
	Check(ctx context.Context) (domain.MonitorResult, error)
}

type ActionNotifier interface {
	NotifyAction(ctx context.Context, result domain.MonitorResult) error
}

// MonitorPoller compares the live USDT price against the latest strategy
// on a ticker and notifies when the recommended action changes.
type MonitorPoller struct {
	tracer   trace.Tracer
	monitor  MonitorChecker
	notifier ActionNotifier
	interval time.Duration

	mu         sync.Mutex
	lastAction domain.MonitorAction
}

func NewMonitorPoller(tracer trace.Tracer, monitor MonitorChecker, notifier ActionNotifier, interval time.Duration) *MonitorPoller {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &MonitorPoller{
		tracer:   tracer,
		monitor:  monitor,
		notifier: notifier,
		interval: interval,
	}
}

// Start polls until ctx is cancelled.
func (p *MonitorPoller) Start(ctx context.Context) {
	if p.monitor == nil {
		log.Println("Monitor poller disabled: no monitor service")
		<-ctx.Done()
		return
	}

	log.Printf("Monitor poller starting (every %s)...", p.interval)
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Monitor poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// LastAction reports the most recently observed action, empty before the first check.
func (p *MonitorPoller) LastAction() domain.MonitorAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAction
}

func (p *MonitorPoller) poll(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "monitor-poller.poll")
	defer span.End()

	result, err := p.monitor.Check(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoStrategy) {
			return
		}
		span.RecordError(err)
		log.Printf("monitor check error: %v", err)
		return
	}
	span.SetAttributes(
		attribute.String("monitor.action", string(result.Action)),
		attribute.Float64("monitor.usdt_price", result.USDTPrice),
	)

	if !p.swapAction(result.Action) {
		return
	}
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyAction(ctx, result); err != nil {
		log.Printf("monitor notify error for %s: %v", result.Action, err)
	}
}

// swapAction records action and reports whether subscribers should hear about it.
// The first observation only notifies when it is not a hold.
func (p *MonitorPoller) swapAction(action domain.MonitorAction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.lastAction
	p.lastAction = action
	if prev == action {
		return false
	}
	return prev != "" || action != domain.ActionHold
}
