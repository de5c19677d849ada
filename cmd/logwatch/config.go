package main

import "time"

const (
	defaultBindHost           = "127.0.0.1"
	defaultAPIPort            = 5000
	defaultTCPPort            = 5140
	defaultWatchPattern       = "*.log"
	defaultMuxBufferSize      = DefaultMuxBuffer
	defaultQueryTimeout       = 30 * time.Second
	defaultBatchSize          = 500
	defaultBatchFlushInterval = 250 * time.Millisecond
	defaultAlertLogMaxSizeMB  = 50
	defaultAlertLogMaxBackups = 5
	defaultAlertLogMaxAgeDays = 30
	defaultLogLevel           = "info"
	defaultBackupInterval     = 6 * time.Hour
	defaultBackupKeepLast     = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host               string        `mapstructure:"host"`
	DBPath             string        `mapstructure:"db-path"`
	QueryTimeout       time.Duration `mapstructure:"query-timeout"`
	APIEnabled         bool          `mapstructure:"api-enabled"`
	APIPort            int           `mapstructure:"api-port"`
	APIAddr            string        `mapstructure:"api-addr"`
	TCPEnabled         bool          `mapstructure:"tcp-enabled"`
	TCPPort            int           `mapstructure:"tcp-port"`
	TCPAddr            string        `mapstructure:"tcp-addr"`
	WatchEnabled       bool          `mapstructure:"watch-enabled"`
	WatchDir           string        `mapstructure:"watch-dir"`
	WatchPattern       string        `mapstructure:"watch-pattern"`
	MuxBufferSize      int           `mapstructure:"mux-buffer-size"`
	BatchSize          int           `mapstructure:"batch-size"`
	BatchFlushInterval time.Duration `mapstructure:"batch-flush-interval"`
	JournalEnabled     bool          `mapstructure:"journal-enabled"`
	JournalPath        string        `mapstructure:"journal-path"`
	SocketPath         string        `mapstructure:"socket-path"`
	AlertLogPath       string        `mapstructure:"alert-log-path"`
	AlertLogMaxSizeMB  int           `mapstructure:"alert-log-max-size-mb"`
	AlertLogMaxBackups int           `mapstructure:"alert-log-max-backups"`
	ReportDir          string        `mapstructure:"report-dir"`
	RulesFile          string        `mapstructure:"rules-file"`
	BackupEnabled      bool          `mapstructure:"backup-enabled"`
	BackupDir          string        `mapstructure:"backup-dir"`
	BackupInterval     time.Duration `mapstructure:"backup-interval"`
	BackupKeepLast     int           `mapstructure:"backup-keep-last"`
	LogLevel           string        `mapstructure:"log-level"`
	ConfigPath         string        `mapstructure:"-"` // not from config file
}
