package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tinytelemetry/logwatch/internal/socketrpc"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logwatch/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("LogWatch Sentinel - Log Threat Detection Service\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	dataDir := filepath.Join(home, ".local", "share", "logwatch")

	v := viper.New()
	v.SetEnvPrefix("LOGWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("db-path", filepath.Join(dataDir, "logwatch.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("watch-enabled", false)
	v.SetDefault("watch-dir", "logs")
	v.SetDefault("watch-pattern", defaultWatchPattern)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("batch-size", defaultBatchSize)
	v.SetDefault("batch-flush-interval", defaultBatchFlushInterval)
	v.SetDefault("journal-enabled", true)
	v.SetDefault("journal-path", filepath.Join(dataDir, "ingest.journal"))
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("alert-log-path", filepath.Join(dataDir, "alerts.log"))
	v.SetDefault("alert-log-max-size-mb", defaultAlertLogMaxSizeMB)
	v.SetDefault("alert-log-max-backups", defaultAlertLogMaxBackups)
	v.SetDefault("report-dir", "")
	v.SetDefault("rules-file", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logwatch", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return cfg, fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.BatchSize <= 0 {
		return cfg, fmt.Errorf("invalid batch-size: %d", cfg.BatchSize)
	}
	if cfg.BatchFlushInterval <= 0 {
		return cfg, fmt.Errorf("invalid batch-flush-interval: %s", cfg.BatchFlushInterval)
	}
	if cfg.WatchEnabled && strings.TrimSpace(cfg.WatchDir) == "" {
		return cfg, fmt.Errorf("watch-dir is required when watch-enabled is set")
	}
	if cfg.BackupEnabled && cfg.DBPath == "" {
		return cfg, fmt.Errorf("backup-enabled requires an on-disk db-path")
	}
	if cfg.WatchPattern != "" {
		if _, err := filepath.Match(cfg.WatchPattern, ""); err != nil {
			return cfg, fmt.Errorf("invalid watch-pattern %q: %w", cfg.WatchPattern, err)
		}
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.DBPath, &cfg.JournalPath, &cfg.AlertLogPath, &cfg.WatchDir, &cfg.ReportDir, &cfg.RulesFile, &cfg.SocketPath, &cfg.BackupDir} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}
