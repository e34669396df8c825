package job

import (
	"context"
	"fmt"
	"log"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/strategy"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRefreshCron = "10 9 * * *"
	DefaultAnalyzeCron = "30 9 * * *"
	DefaultRefreshDays = 7
)

type RefreshRunner interface {
	RefreshAll(ctx context.Context, days int) error
}

type Analyzer interface {
	Analyze(ctx context.Context, force bool) (strategy.Outcome, error)
}

// Scheduler runs the daily refresh and analysis passes on cron specs
// evaluated in the canonical zone.
type Scheduler struct {
	tracer      trace.Tracer
	cron        *cron.Cron
	refresh     RefreshRunner
	analyze     Analyzer
	refreshDays int
	newRunID    func() string
}

type SchedulerConfig struct {
	RefreshCron string
	AnalyzeCron string
	RefreshDays int
}

func NewScheduler(tracer trace.Tracer, refresh RefreshRunner, analyze Analyzer, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.RefreshCron == "" {
		cfg.RefreshCron = DefaultRefreshCron
	}
	if cfg.AnalyzeCron == "" {
		cfg.AnalyzeCron = DefaultAnalyzeCron
	}
	if cfg.RefreshDays <= 0 {
		cfg.RefreshDays = DefaultRefreshDays
	}

	s := &Scheduler{
		tracer:      tracer,
		cron:        cron.New(cron.WithLocation(domain.Canonical)),
		refresh:     refresh,
		analyze:     analyze,
		refreshDays: cfg.RefreshDays,
		newRunID:    func() string { return uuid.New().String() },
	}
	if refresh != nil {
		if _, err := s.cron.AddFunc(cfg.RefreshCron, func() { s.RunRefresh(context.Background()) }); err != nil {
			return nil, fmt.Errorf("register refresh job %q: %w", cfg.RefreshCron, err)
		}
	}
	if analyze != nil {
		if _, err := s.cron.AddFunc(cfg.AnalyzeCron, func() { s.RunAnalyze(context.Background()) }); err != nil {
			return nil, fmt.Errorf("register analyze job %q: %w", cfg.AnalyzeCron, err)
		}
	}
	return s, nil
}

// Start runs the cron loop until ctx is cancelled and waits for in-flight passes.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		<-ctx.Done()
		return
	}
	log.Printf("Scheduler starting with %d job(s)...", len(s.cron.Entries()))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

// RunRefresh executes one refresh pass tagged with a fresh run ID.
func (s *Scheduler) RunRefresh(ctx context.Context) error {
	runID := s.newRunID()
	ctx, span := s.tracer.Start(ctx, "scheduler.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID), attribute.Int("refresh.days", s.refreshDays))

	log.Printf("[%s] refresh pass starting (%d days)", runID, s.refreshDays)
	if err := s.refresh.RefreshAll(ctx, s.refreshDays); err != nil {
		span.RecordError(err)
		log.Printf("[%s] refresh pass failed: %v", runID, err)
		return err
	}
	log.Printf("[%s] refresh pass finished", runID)
	return nil
}

// RunAnalyze executes one non-forced analysis pass tagged with a fresh run ID.
func (s *Scheduler) RunAnalyze(ctx context.Context) error {
	runID := s.newRunID()
	ctx, span := s.tracer.Start(ctx, "scheduler.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	log.Printf("[%s] analysis pass starting", runID)
	outcome, err := s.analyze.Analyze(ctx, false)
	if err != nil {
		span.RecordError(err)
		log.Printf("[%s] analysis pass failed: %v", runID, err)
		return err
	}
	if outcome.Skipped {
		log.Printf("[%s] analysis for %s already exists, skipped", runID, outcome.Today)
		return nil
	}
	log.Printf("[%s] analysis pass stored record for %s", runID, outcome.Today)
	return nil
}
