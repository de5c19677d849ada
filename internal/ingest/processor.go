package ingest

import (
	"fmt"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// Processor normalizes envelopes and routes the records to storage.
type Processor struct {
	normalizer *Normalizer
	writer     model.LogWriter
}

// NewProcessor creates a processor writing to writer.
// A nil normalizer uses the wall-clock default.
func NewProcessor(normalizer *Normalizer, writer model.LogWriter) *Processor {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Processor{normalizer: normalizer, writer: writer}
}

// ProcessResult holds the records produced for one envelope, with store ids assigned.
type ProcessResult struct {
	Records []*model.LogRecord
}

// ProcessEnvelope normalizes env and stores the resulting records in one batch.
// The envelope filename is the source fallback; the origin kind is used when it is empty.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) (*ProcessResult, error) {
	filename := env.Filename
	if filename == "" {
		filename = env.Source
	}

	records := p.normalizer.ParseLines(env.Lines, filename)
	if len(records) == 0 {
		return &ProcessResult{}, nil
	}

	if p.writer != nil {
		if err := p.writer.InsertLogBatch(records); err != nil {
			return nil, fmt.Errorf("store %d records from %s: %w", len(records), filename, err)
		}
	}
	return &ProcessResult{Records: records}, nil
}
