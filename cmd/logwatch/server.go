package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/logwatch/internal/alertlog"
	"github.com/tinytelemetry/logwatch/internal/backup"
	"github.com/tinytelemetry/logwatch/internal/duckdb"
	"github.com/tinytelemetry/logwatch/internal/httpserver"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/journal"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/pipeline"
	"github.com/tinytelemetry/logwatch/internal/rules"
	"github.com/tinytelemetry/logwatch/internal/socketrpc"
	"github.com/tinytelemetry/logwatch/internal/wshub"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// runServer starts log ingestion, detection and the read surfaces.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	// Initialize DuckDB store
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	alertLog, err := alertlog.New(alertlog.Config{
		Path:       cfg.AlertLogPath,
		MaxSizeMB:  cfg.AlertLogMaxSizeMB,
		MaxBackups: cfg.AlertLogMaxBackups,
		MaxAgeDays: defaultAlertLogMaxAgeDays,
		Compress:   true,
		Level:      cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to open alert log: %w", err)
	}
	defer alertLog.Close()

	// Set up context and signal handling before any background work
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := wshub.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	backups, err := backup.NewManager(store, backup.Config{
		Enabled:  cfg.BackupEnabled,
		Interval: cfg.BackupInterval,
		Dir:      cfg.BackupDir,
		KeepLast: cfg.BackupKeepLast,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}

	coordOpts := pipeline.Options{
		Catalog:    catalog,
		Normalizer: ingest.NewNormalizer(),
		Publisher:  hub,
		AlertLog:   alertLog,
		ReportDir:  cfg.ReportDir,
	}
	if backups != nil {
		coordOpts.Archiver = backups
		backups.Start()
		defer backups.Stop()
	}
	coordinator := pipeline.New(store, coordOpts)
	if err := coordinator.Prime(ctx); err != nil {
		log.Printf("server: initial detection failed: %v", err)
	}

	// Open local ingest journal for crash-safe replay and durable buffering.
	var ingestJournal *journal.Journal
	if cfg.JournalEnabled {
		ingestJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open ingest journal: %w", err)
		}
		if err := replayUncommittedJournal(ctx, ingestJournal, coordinator); err != nil {
			_ = ingestJournal.Close()
			return fmt.Errorf("failed to replay ingest journal: %w", err)
		}
	}

	batcherConf := ingest.BatcherConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchFlushInterval,
	}
	if ingestJournal != nil {
		batcherConf.Journal = ingestJournal
	}
	batcher := ingest.NewBatcher(coordinator, batcherConf)
	defer batcher.Stop()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, coordinator, store,
			httpserver.WithWebSocket(http.HandlerFunc(hub.ServeWS)),
		)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for TUI IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, coordinator)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		WatchEnabled: cfg.WatchEnabled,
		WatchDir:     cfg.WatchDir,
		WatchPattern: cfg.WatchPattern,
		TCPEnabled:   cfg.TCPEnabled,
		TCPAddr:      cfg.TCPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, mux.SourceNames(), catalog.Len())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop. Streaming input is batched before detection runs.
	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				batcher.Add(env)
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()
	<-hubDone

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

// loadCatalog returns the built-in rules, or the catalog in path when set.
func loadCatalog(path string) (*rules.Catalog, error) {
	if path == "" {
		return rules.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rules.Load(f)
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "logwatch")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "logwatch.log"),
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(rotator)
	return func() {
		log.SetOutput(os.Stderr)
		_ = rotator.Close()
	}
}

// envelopeIngester is the part of the coordinator journal replay needs.
type envelopeIngester interface {
	Ingest(ctx context.Context, env model.IngestEnvelope) (*pipeline.IngestResult, error)
}

// replayUncommittedJournal redelivers envelopes journaled before the last
// shutdown that never reached the store. Each one is committed once ingested.
func replayUncommittedJournal(ctx context.Context, j *journal.Journal, ing envelopeIngester) error {
	if j == nil {
		return nil
	}

	replayed := 0
	if err := j.Replay(func(seq uint64, env model.IngestEnvelope) error {
		if _, err := ing.Ingest(ctx, env); err != nil {
			return err
		}
		if err := j.Commit(seq); err != nil {
			return err
		}
		replayed++
		return nil
	}); err != nil {
		return err
	}

	if replayed > 0 {
		log.Printf("ingest journal: replayed %d uncommitted batches", replayed)
	}
	return nil
}

func printStartupBanner(cfg appConfig, sources []string, ruleCount int) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╔═╗╔═╗╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ║  ║ ║║ ╦║║║╠═╣ ║ ║  ╠═╣
    ╩═╝╚═╝╚═╝╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	ver := dim.Render("v" + version + "  Sentinel")

	enabled := func(name string) bool {
		for _, s := range sources {
			if s == name {
				return true
			}
		}
		return false
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
		lines = append(lines, fmt.Sprintf("    %s  WebSocket      %s", check, cyan.Render(cfg.APIAddr+"/api/ws")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	// Inputs
	lines = append(lines, bold.Render("    Inputs"))
	lines = append(lines, "")

	if enabled("tcp") {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}
	if enabled("file") {
		lines = append(lines, fmt.Sprintf("    %s  File Watch     %s", check, dim.Render(shortenPath(filepath.Join(cfg.WatchDir, cfg.WatchPattern)))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  File Watch     %s", dot, dim.Render("disabled")))
	}
	if enabled("stdin") {
		lines = append(lines, fmt.Sprintf("    %s  Stdin          %s", check, dim.Render("piped")))
	}
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Storage        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	if cfg.JournalEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", check, dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Alert Log      %s", check, dim.Render(shortenPath(cfg.AlertLogPath))))
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Backups        %s", check, dim.Render(fmt.Sprintf("%s every %s", shortenPath(cfg.BackupDir), cfg.BackupInterval))))
	}
	if cfg.ReportDir != "" {
		lines = append(lines, fmt.Sprintf("    %s  Reports        %s", check, dim.Render(shortenPath(cfg.ReportDir))))
	}
	lines = append(lines, "")

	// Detection
	lines = append(lines, bold.Render("    Detection"))
	lines = append(lines, "")
	rulesSource := "built-in"
	if cfg.RulesFile != "" {
		rulesSource = shortenPath(cfg.RulesFile)
	}
	lines = append(lines, fmt.Sprintf("    %s  Rules          %s", check, dim.Render(fmt.Sprintf("%d (%s)", ruleCount, rulesSource))))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
