package model

import "time"

// Shared defaults used by both the server and TUI binaries.
const (
	DefaultUpdateInterval = 2 * time.Second
	DefaultLogBuffer      = 1000
	DefaultLogsLimit      = 100
	MaxLogsLimit          = 1000
	Version               = "1.0.0"
)
