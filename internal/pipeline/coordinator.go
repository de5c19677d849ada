// Package pipeline ties normalization, storage and detection together and
// owns the live statistics shared by every read surface.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/logwatch/internal/alertlog"
	"github.com/tinytelemetry/logwatch/internal/detect"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/report"
	"github.com/tinytelemetry/logwatch/internal/rules"
)

// Options configures a Coordinator. Every field is optional.
type Options struct {
	Catalog    *rules.Catalog
	Normalizer *ingest.Normalizer
	Publisher  Publisher
	AlertLog   *alertlog.Logger
	Reports    *report.Generator
	// ReportDir, when set, keeps a copy of every generated report.
	ReportDir string
	// Archiver, when set, preserves the store before Clear removes it.
	// A failed archive aborts the clear.
	Archiver Archiver
	Now      func() time.Time
}

// Archiver copies the store aside.
type Archiver interface {
	Archive(ctx context.Context) error
}

// IngestResult describes one accepted envelope.
type IngestResult struct {
	BatchID   string
	Records   []*model.LogRecord
	NewAlerts []model.Alert
	Stats     model.LiveStats
}

// RenderedReport is a generated PDF report.
type RenderedReport struct {
	Filename string
	Data     []byte
	// Path is set when the report was also written to the report directory.
	Path string
}

// Coordinator serializes ingestion: store, full-corpus detection, diff against
// the previous run, live stats and publication happen as one step per envelope.
// Reads go straight to the store and never wait on ingestion.
type Coordinator struct {
	store     model.LogStore
	processor *ingest.Processor
	detector  *detect.Detector
	pub       Publisher
	alertLog  *alertlog.Logger
	reports   *report.Generator
	reportDir string
	archiver  Archiver
	now       func() time.Time

	mu     sync.Mutex
	primed bool
	prev   []model.Alert
	stats  model.LiveStats
}

// New creates a coordinator over store.
func New(store model.LogStore, opts Options) *Coordinator {
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	reports := opts.Reports
	if reports == nil {
		reports = report.NewGenerator()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:     store,
		processor: ingest.NewProcessor(opts.Normalizer, store),
		detector:  detect.New(opts.Catalog),
		pub:       pub,
		alertLog:  opts.AlertLog,
		reports:   reports,
		reportDir: opts.ReportDir,
		archiver:  opts.Archiver,
		now:       now,
	}
}

// Prime runs detection over the records already stored so alerts found
// before a restart are not announced again as new.
func (c *Coordinator) Prime(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primeLocked()
}

func (c *Coordinator) primeLocked() error {
	if c.primed {
		return nil
	}
	all, alerts, err := c.detectAll()
	if err != nil {
		return err
	}
	c.prev = alerts
	c.stats = ComputeLiveStats(int64(len(all)), alerts)
	c.primed = true
	return nil
}

// detectAll snapshots the corpus and runs one detection pass over it.
func (c *Coordinator) detectAll() ([]*model.LogRecord, []model.Alert, error) {
	all, err := c.store.AllLogs()
	if err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	start := time.Now()
	alerts, err := c.detector.Detect(all)
	if err != nil {
		return nil, nil, fmt.Errorf("detect: %w", err)
	}
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	metrics.DetectionCorpusSize.Set(float64(len(all)))
	return all, alerts, nil
}

// HandleEnvelope ingests env. It lets the coordinator sit behind an ingest.Batcher.
func (c *Coordinator) HandleEnvelope(ctx context.Context, env model.IngestEnvelope) error {
	_, err := c.Ingest(ctx, env)
	return err
}

// Ingest normalizes and stores env, re-runs detection over the whole corpus
// and publishes the new records, the alerts not seen in the previous run and
// the refreshed stats. An envelope with only blank lines is a no-op.
func (c *Coordinator) Ingest(ctx context.Context, env model.IngestEnvelope) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.primeLocked(); err != nil {
		return nil, err
	}

	res, err := c.processor.ProcessEnvelope(env)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return &IngestResult{BatchID: batchID, Stats: c.stats}, nil
	}
	metrics.LogsIngested.WithLabelValues(sourceLabel(env)).Add(float64(len(res.Records)))

	all, alerts, err := c.detectAll()
	if err != nil {
		return nil, err
	}
	fresh := detect.NewAlerts(c.prev, alerts)
	c.prev = alerts
	c.stats = ComputeLiveStats(int64(len(all)), alerts)

	logs := make([]model.LogRecord, len(res.Records))
	for i, r := range res.Records {
		logs[i] = *r
	}
	c.pub.Publish(EventNewLogs, logs)
	if len(fresh) > 0 {
		c.pub.Publish(EventNewAlerts, fresh)
		c.alertLog.Record(batchID, fresh)
		for _, a := range fresh {
			metrics.AlertsEmitted.WithLabelValues(a.Type, a.Severity).Inc()
		}
	}
	c.pub.Publish(EventStatsUpdate, c.stats)

	if len(fresh) > 0 {
		log.Printf("pipeline: batch %s stored %d records from %s, %d new alerts", batchID, len(res.Records), sourceLabel(env), len(fresh))
	}

	return &IngestResult{
		BatchID:   batchID,
		Records:   res.Records,
		NewAlerts: fresh,
		Stats:     c.stats,
	}, nil
}

func sourceLabel(env model.IngestEnvelope) string {
	if env.Source == "" {
		return "unknown"
	}
	return env.Source
}

// Analyze runs a fresh detection pass over the stored corpus.
func (c *Coordinator) Analyze(ctx context.Context) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, alerts, err := c.detectAll()
	if err != nil {
		return nil, err
	}
	return &model.Analysis{
		Alerts:    alerts,
		Stats:     detect.Statistics(alerts),
		TotalLogs: int64(len(all)),
	}, nil
}

// Timeline returns the attack narrative for the stored corpus.
func (c *Coordinator) Timeline(ctx context.Context) ([]model.TimelineEntry, error) {
	analysis, err := c.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return detect.Timeline(analysis.Alerts), nil
}

// Stats returns the live stats of the latest ingest, computing them from the
// store on first use.
func (c *Coordinator) Stats(ctx context.Context) (model.LiveStats, error) {
	if err := ctx.Err(); err != nil {
		return model.LiveStats{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.primeLocked(); err != nil {
		return model.LiveStats{}, err
	}
	return c.stats, nil
}

// RecentLogs returns up to limit stored records, newest first, optionally filtered by severity.
func (c *Coordinator) RecentLogs(ctx context.Context, limit int, severity string) ([]model.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.store.RecentLogs(limit, severity)
}

// TotalLogCount returns the number of stored records.
func (c *Coordinator) TotalLogCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.store.TotalLogCount()
}

// Clear removes every stored record and resets the live state.
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx); err != nil {
			return fmt.Errorf("archive before clear: %w", err)
		}
	}
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.prev = nil
	c.stats = model.LiveStats{}
	c.primed = true
	c.pub.Publish(EventStatsUpdate, c.stats)
	log.Printf("pipeline: store cleared")
	return nil
}

// Report renders the PDF report for the stored corpus.
func (c *Coordinator) Report(ctx context.Context) (*RenderedReport, error) {
	analysis, err := c.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	data := &report.Data{
		GeneratedAt: c.now(),
		TotalLogs:   analysis.TotalLogs,
		Alerts:      analysis.Alerts,
		Stats:       analysis.Stats,
		Timeline:    detect.Timeline(analysis.Alerts),
	}

	pdf, err := c.reports.Generate(data)
	if err != nil {
		return nil, err
	}
	out := &RenderedReport{Filename: report.Filename(data.GeneratedAt), Data: pdf}
	if c.reportDir != "" {
		path, err := report.Save(c.reportDir, data.GeneratedAt, pdf)
		if err != nil {
			return nil, err
		}
		out.Path = path
	}
	return out, nil
}

var _ model.ReadAPI = (*Coordinator)(nil)
var _ ingest.EnvelopeHandler = (*Coordinator)(nil)
