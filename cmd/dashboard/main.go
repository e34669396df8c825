package main

import (
	"context"
	"io"
	"log"
	"os"
	"strings"

	"kimchi-signal/internal/app"
	"kimchi-signal/internal/config"
	"kimchi-signal/internal/tui"
	"kimchi-signal/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	buildAppFunc   = app.Build
	setupLogFunc   = setupLog
	runProgramFunc = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
)

func main() {
	loadEnvFunc()

	closeLog, err := setupLogFunc(os.Getenv("DASHBOARD_LOG"))
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer closeLog()

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

	model := tui.NewAppModel(tui.Services{
		Pipeline: a.Pipeline,
		Strategy: a.Strategy,
		Monitor:  a.Monitor,
		Optimize: a.Optimize,
		Anomaly:  a.Anomaly,
	})
	if err := runProgramFunc(model); err != nil {
		log.Fatalf("dashboard exited with error: %v", err)
	}
}

// setupLog keeps log output off the alternate screen: it goes to path when set
// and is discarded otherwise.
func setupLog(path string) (func(), error) {
	path = strings.TrimSpace(path)
	if path == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := tea.LogToFile(path, "dashboard")
	if err != nil {
		return nil, err
	}
	return func() { _ = f.Close() }, nil
}
