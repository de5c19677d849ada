package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

type batchKey struct {
	source   string
	filename string
}

type pendingBatch struct {
	key   batchKey
	lines []string
	seqs  []uint64
}

// Batcher groups streaming envelopes per source and filename and hands them
// to a handler in batches. Every handler call triggers a full detection pass,
// so line-at-a-time sources (tcp, stdin) go through here.
// Add never blocks on the handler; batches are delivered by a flush goroutine.
type Batcher struct {
	handler       EnvelopeHandler
	mu            sync.Mutex
	pending       map[batchKey]*pendingBatch
	order         []batchKey
	flushChan     chan *pendingBatch
	maxLines      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	journal       durableJournal
	seqs          *seqTracker

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// BatcherConfig holds tunable parameters for the batcher.
type BatcherConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Journal        durableJournal
}

// NewBatcher creates a batcher delivering to handler.
func NewBatcher(handler EnvelopeHandler, conf ...BatcherConfig) *Batcher {
	batchSize := 500
	flushInterval := 250 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	var j durableJournal
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
		j = conf[0].Journal
	}

	b := &Batcher{
		handler:       handler,
		pending:       make(map[batchKey]*pendingBatch),
		flushChan:     make(chan *pendingBatch, flushQueueSize),
		maxLines:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		journal:       j,
		seqs:          newSeqTracker(),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// Add queues an envelope. Blank-only envelopes are dropped.
func (b *Batcher) Add(env model.IngestEnvelope) {
	if env.Empty() {
		return
	}

	seq := uint64(0)
	if b.journal != nil {
		for {
			var err error
			seq, err = b.journal.Append(env)
			if err == nil {
				break
			}
			log.Printf("ingest: journal append failed, retrying: %v", err)
			select {
			case <-b.done:
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
		b.seqs.start(seq)
	}

	key := batchKey{source: env.Source, filename: env.Filename}

	b.mu.Lock()
	batch, ok := b.pending[key]
	if !ok {
		batch = &pendingBatch{key: key}
		b.pending[key] = batch
		b.order = append(b.order, key)
	}
	batch.lines = append(batch.lines, env.Lines...)
	if seq > 0 {
		batch.seqs = append(batch.seqs, seq)
	}
	var full *pendingBatch
	if len(batch.lines) >= b.maxLines {
		full = b.takeLocked(key)
	}
	b.mu.Unlock()

	if full != nil {
		b.enqueue(full)
	}
}

// Stop flushes remaining batches and waits for the handler to finish.
func (b *Batcher) Stop() {
	close(b.done)
	b.tickWg.Wait()
	close(b.flushChan)
	b.wg.Wait()
	if b.journal != nil {
		if err := b.journal.Close(); err != nil {
			log.Printf("ingest: journal close error: %v", err)
		}
	}
}

func (b *Batcher) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// takeLocked removes the batch for key. Caller holds b.mu.
func (b *Batcher) takeLocked(key batchKey) *pendingBatch {
	batch := b.pending[key]
	delete(b.pending, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return batch
}

func (b *Batcher) drainPending() {
	b.mu.Lock()
	if len(b.order) == 0 {
		b.mu.Unlock()
		return
	}
	batches := make([]*pendingBatch, 0, len(b.order))
	for _, key := range b.order {
		batches = append(batches, b.pending[key])
	}
	b.pending = make(map[batchKey]*pendingBatch)
	b.order = nil
	b.mu.Unlock()

	for _, batch := range batches {
		b.enqueue(batch)
	}
}

func (b *Batcher) enqueue(batch *pendingBatch) {
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		b.flush(batch)
	}
}

func (b *Batcher) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("ingest: backpressure, %d inline flushes (flush queue full)", count)
	}
}

func (b *Batcher) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flush(batch)
	}
}

// flush delivers one batch. On failure its journal entries stay uncommitted
// and are redelivered on the next start.
func (b *Batcher) flush(batch *pendingBatch) {
	if batch == nil || len(batch.lines) == 0 {
		return
	}
	env := model.IngestEnvelope{
		Source:   batch.key.source,
		Filename: batch.key.filename,
		Lines:    batch.lines,
	}
	if err := b.handler.HandleEnvelope(context.Background(), env); err != nil {
		log.Printf("ingest: flush %d lines from %s failed: %v", len(batch.lines), batch.key.source, err)
		return
	}
	if b.journal == nil || len(batch.seqs) == 0 {
		return
	}
	if mark, ok := b.seqs.finish(batch.seqs); ok {
		if err := b.journal.Commit(mark); err != nil {
			log.Printf("ingest: journal commit seq=%d: %v", mark, err)
		}
	}
}

// seqTracker computes the journal commit watermark: the highest sequence
// below which every appended envelope has been delivered.
type seqTracker struct {
	mu          sync.Mutex
	outstanding map[uint64]struct{}
	maxDone     uint64
}

func newSeqTracker() *seqTracker {
	return &seqTracker{outstanding: make(map[uint64]struct{})}
}

func (t *seqTracker) start(seq uint64) {
	t.mu.Lock()
	t.outstanding[seq] = struct{}{}
	t.mu.Unlock()
}

// finish marks seqs delivered and returns the new watermark, if any.
func (t *seqTracker) finish(seqs []uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range seqs {
		delete(t.outstanding, s)
		if s > t.maxDone {
			t.maxDone = s
		}
	}
	mark := t.maxDone
	for s := range t.outstanding {
		if s <= mark {
			mark = s - 1
		}
	}
	return mark, mark > 0
}
