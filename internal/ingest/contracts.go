package ingest

import (
	"context"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// EnvelopeHandler consumes one batch of raw lines from a single source.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env model.IngestEnvelope) error
}

// EnvelopeHandlerFunc adapts a function to EnvelopeHandler.
type EnvelopeHandlerFunc func(ctx context.Context, env model.IngestEnvelope) error

// HandleEnvelope calls f(ctx, env).
func (f EnvelopeHandlerFunc) HandleEnvelope(ctx context.Context, env model.IngestEnvelope) error {
	return f(ctx, env)
}

// durableJournal is the subset of journal.Journal the batcher needs.
type durableJournal interface {
	Append(env model.IngestEnvelope) (uint64, error)
	Commit(seq uint64) error
	Close() error
}
