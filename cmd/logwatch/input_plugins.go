package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/logwatch/internal/logsource"
	"github.com/tinytelemetry/logwatch/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	WatchEnabled bool
	WatchDir     string
	WatchPattern string
	TCPEnabled   bool
	TCPAddr      string
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 3)
	plugins = append(plugins, fileWatchInputPlugin{
		dir:     cfg.WatchDir,
		pattern: cfg.WatchPattern,
		enabled: cfg.WatchEnabled,
	})
	plugins = append(plugins, tcpInputPlugin{
		addr:    cfg.TCPAddr,
		enabled: cfg.TCPEnabled,
	})
	plugins = append(plugins, stdinInputPlugin{})
	return plugins
}

type fileWatchInputPlugin struct {
	dir     string
	pattern string
	enabled bool
}

func (p fileWatchInputPlugin) Name() string { return "file" }

func (p fileWatchInputPlugin) Enabled() bool { return p.enabled && p.dir != "" }

func (p fileWatchInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	src, err := logsource.NewFileWatchSource(ctx, logsource.FileWatchConfig{
		Dir:     p.dir,
		Pattern: p.pattern,
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", p.dir, err)
	}
	return src, nil
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx), nil
}
