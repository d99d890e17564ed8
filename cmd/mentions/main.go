package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/abelbrown/mentions/internal/config"
	"github.com/abelbrown/mentions/internal/coord"
	"github.com/abelbrown/mentions/internal/fetch"
	"github.com/abelbrown/mentions/internal/logging"
	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/pipeline"
	"github.com/abelbrown/mentions/internal/store"
	"github.com/abelbrown/mentions/internal/ui"
)

// ringSize is how many recent events the debug pane keeps.
const ringSize = 512

func main() {
	// Errors before the TUI starts go to stderr; after that, to the log file.
	stderr := log.NewWithOptions(os.Stderr, log.Options{Prefix: "mentions"})

	cfg, err := config.Load()
	if err != nil {
		stderr.Fatal("Failed to load config", "path", config.Path(), "err", err)
	}

	if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
		stderr.Fatal("Failed to open log", "err", err)
	}
	defer logging.Close()

	events, err := otel.Open(cfg.EventLogPath)
	if err != nil {
		logging.Warn("event log unavailable", "path", cfg.EventLogPath, "err", err)
		events = otel.NewNullLogger()
	}
	ring := otel.NewRingBuffer(ringSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "main", "mentions started")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		events.Close()
		stderr.Fatal("Failed to open database", "path", cfg.DBPath, "err", err)
	}
	defer st.Close()

	sources := cfg.FetchSources()
	timeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	fetcher := fetch.NewFetcher(timeout, cfg.RequestsPerSecond)

	loader := pipeline.NewLoader(fetcher, sources, pipeline.Options{
		Timeout:       timeout,
		MaxConcurrent: cfg.MaxConcurrent,
		Events:        events,
		Recorder:      st,
		KeepLoads:     cfg.KeepLoads,
	})

	tier, _ := model.ParseTier(cfg.View.Tier)
	app := ui.NewApp(ui.AppConfig{
		Load:          loader.LoadID,
		NextID:        loader.NextID,
		Context:       ctx,
		Tier:          tier,
		MarkdownStyle: os.Getenv("MENTIONS_STYLE"),
		Obs:           ui.ObsConfig{Ring: ring},
	})

	program := tea.NewProgram(app, tea.WithAltScreen())

	var watched []string
	if cfg.Watch {
		watched = fetch.LocalPaths(sources)
	}
	coordinator, err := coord.New(coord.Options{
		Files:   watched,
		Refresh: cfg.Refresh,
		Events:  events,
	})
	if err != nil {
		events.Close()
		stderr.Fatal("Invalid refresh schedule", "err", err)
	}
	if err := coordinator.Start(ctx, program); err != nil {
		// Reload on r still works without the watcher.
		logging.Warn("background reloads disabled", "err", err)
	}

	logging.Info("starting", "sources", len(sources), "watch", len(watched), "refresh", cfg.Refresh)

	// Run UI (blocks until quit)
	if _, err := program.Run(); err != nil {
		logging.Error("program exited with error", "err", err)
	}

	// Graceful shutdown
	cancel()
	coordinator.Wait()
	events.Info(otel.KindShutdown, "main", "mentions stopped")
	events.Close()
}
