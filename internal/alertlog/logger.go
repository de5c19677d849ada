// Package alertlog writes an append-only JSON audit trail of emitted alerts.
package alertlog

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// Config controls the audit file and its rotation.
type Config struct {
	// Path is the audit log file.
	Path string

	// MaxSizeMB is the size in megabytes before rotation.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// MaxAgeDays is the number of days to keep rotated files.
	MaxAgeDays int

	Compress bool

	// Level is the minimum level written (debug, info, warn, error).
	Level string
}

// DefaultConfig returns the audit log defaults.
func DefaultConfig() Config {
	return Config{
		Path:       "logs/alerts.log",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Level:      "info",
	}
}

// Logger records newly emitted alerts. A nil *Logger discards everything.
type Logger struct {
	zl      *zap.Logger
	rotator *lumberjack.Logger
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "timestamp",
	LevelKey:       "level",
	NameKey:        "logger",
	MessageKey:     "message",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
}

// New opens the audit log described by cfg. Zero fields take the defaults.
func New(cfg Config) (*Logger, error) {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = def.MaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = def.MaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = def.MaxAgeDays
	}
	if cfg.Level == "" {
		cfg.Level = def.Level
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create alert log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)

	return &Logger{zl: zap.New(core).Named("alerts"), rotator: rotator}, nil
}

// NewWithCore builds a Logger on an existing core.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zl: zap.New(core).Named("alerts")}
}

// levelFor maps alert severity to a log level so the configured level filters low-value alerts.
func levelFor(severity string) zapcore.Level {
	switch severity {
	case model.AlertCritical:
		return zapcore.ErrorLevel
	case model.AlertHigh:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Record writes one line per alert, tagged with the ingest batch that produced it.
func (l *Logger) Record(batchID string, alerts []model.Alert) {
	if l == nil || l.zl == nil {
		return
	}
	for _, a := range alerts {
		if ce := l.zl.Check(levelFor(a.Severity), a.Description); ce != nil {
			ce.Write(
				zap.String("batch_id", batchID),
				zap.String("type", a.Type),
				zap.String("severity", a.Severity),
				zap.String("source", a.Source),
				zap.String("ip_address", a.IPAddress),
				zap.String("username", a.Username),
				zap.Int64("log_id", a.LogID),
				zap.String("log_timestamp", a.Timestamp),
			)
		}
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil || l.zl == nil {
		return nil
	}
	return l.zl.Sync()
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
