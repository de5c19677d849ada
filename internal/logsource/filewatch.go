package logsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	// DefaultWatchPattern selects the files followed in the watched directory.
	DefaultWatchPattern = "*.log"

	// DefaultWatchBuffer is the channel buffer size for file envelopes.
	DefaultWatchBuffer = 1024

	// maxReadChunk bounds a single read from a watched file.
	maxReadChunk = 4 << 20
)

// FileWatchConfig configures a FileWatchSource.
type FileWatchConfig struct {
	Dir     string
	Pattern string
	// BufferSize is the envelope channel capacity.
	BufferSize int
	// PollInterval, when positive, rescans every matching file on a timer
	// in addition to filesystem notifications.
	PollInterval time.Duration
}

// trackedFile is the read position of one watched file. mu serializes reads
// so two notifications never read from the same stale offset.
type trackedFile struct {
	mu     sync.Mutex
	offset int64
}

// FileWatchSource follows appends to the files of one directory.
// Files present at start are tailed from their current end; files created
// later are read from the beginning. Only complete lines are delivered.
type FileWatchSource struct {
	dir          string
	pattern      string
	pollInterval time.Duration
	watcher      *fsnotify.Watcher
	ch           chan model.IngestEnvelope

	mu    sync.Mutex
	files map[string]*trackedFile

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewFileWatchSource starts watching cfg.Dir. The directory is created if missing.
func NewFileWatchSource(ctx context.Context, cfg FileWatchConfig) (*FileWatchSource, error) {
	s, err := newFileWatchSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

func newFileWatchSource(ctx context.Context, cfg FileWatchConfig) (*FileWatchSource, error) {
	if cfg.Dir == "" {
		return nil, errors.New("logsource: watch dir is required")
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultWatchPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("logsource: invalid watch pattern %q: %w", pattern, err)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultWatchBuffer
	}

	ctx, cancel := context.WithCancel(ctx)
	return &FileWatchSource{
		dir:          cfg.Dir,
		pattern:      pattern,
		pollInterval: cfg.PollInterval,
		ch:           make(chan model.IngestEnvelope, bufferSize),
		files:        make(map[string]*trackedFile),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (s *FileWatchSource) start() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("logsource: create watch dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("logsource: create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("logsource: watch %s: %w", s.dir, err)
	}
	s.watcher = w

	if err := s.seedOffsets(); err != nil {
		w.Close()
		return err
	}

	s.wg.Add(1)
	go s.loop()
	if s.pollInterval > 0 {
		s.wg.Add(1)
		go s.pollLoop()
	}
	log.Printf("logsource: watching %s for %s", s.dir, s.pattern)
	return nil
}

// seedOffsets positions every existing matching file at its current end.
func (s *FileWatchSource) seedOffsets() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("logsource: list %s: %w", s.dir, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !s.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.files[filepath.Join(s.dir, e.Name())] = &trackedFile{offset: info.Size()}
	}
	return nil
}

func (s *FileWatchSource) matches(path string) bool {
	ok, _ := filepath.Match(s.pattern, filepath.Base(path))
	return ok
}

func (s *FileWatchSource) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.matches(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				s.handleRead(ev.Name)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				s.forget(ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("logsource: watcher error: %v", err)
		}
	}
}

func (s *FileWatchSource) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			entries, err := os.ReadDir(s.dir)
			if err != nil {
				log.Printf("logsource: rescan %s: %v", s.dir, err)
				continue
			}
			for _, e := range entries {
				if !e.IsDir() && s.matches(e.Name()) {
					s.handleRead(filepath.Join(s.dir, e.Name()))
				}
			}
		}
	}
}

func (s *FileWatchSource) handleRead(path string) {
	if err := s.readNew(path); err != nil {
		var terr *TransientReadError
		if errors.As(err, &terr) {
			metrics.WatcherReadErrors.Inc()
		}
		log.Printf("logsource: %v", err)
	}
}

func (s *FileWatchSource) track(path string) *trackedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, ok := s.files[path]
	if !ok {
		tf = &trackedFile{}
		s.files[path] = tf
	}
	return tf
}

// lockTracked returns the current entry for path with its read lock held.
// An entry forgotten while a caller waited on it is skipped for the fresh one.
func (s *FileWatchSource) lockTracked(path string) *trackedFile {
	for {
		tf := s.track(path)
		tf.mu.Lock()
		s.mu.Lock()
		current := s.files[path] == tf
		s.mu.Unlock()
		if current {
			return tf
		}
		tf.mu.Unlock()
	}
}

func (s *FileWatchSource) forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// readNew delivers the complete lines appended to path since the last read.
// A trailing partial line is left unread until its newline arrives.
func (s *FileWatchSource) readNew(path string) error {
	tf := s.lockTracked(path)
	defer tf.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.forget(path)
		}
		return &TransientReadError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &TransientReadError{Path: path, Op: "stat", Err: err}
	}
	if info.Size() < tf.offset {
		tf.offset = 0
		return &TransientReadError{Path: path, Op: "read", Err: ErrTruncated}
	}

	for tf.offset < info.Size() {
		n := info.Size() - tf.offset
		if n > maxReadChunk {
			n = maxReadChunk
		}
		buf := make([]byte, n)
		read, err := f.ReadAt(buf, tf.offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return &TransientReadError{Path: path, Op: "read", Err: err}
		}
		buf = buf[:read]

		end := bytes.LastIndexByte(buf, '\n')
		if end < 0 {
			if int64(read) < maxReadChunk {
				return nil
			}
			// A single line longer than the chunk: deliver what we have.
			end = read - 1
		}
		chunk := buf[:end+1]
		tf.offset += int64(len(chunk))

		if err := s.emit(path, chunk); err != nil {
			return err
		}
		if int64(read) < n {
			return nil
		}
	}
	return nil
}

func (s *FileWatchSource) emit(path string, chunk []byte) error {
	text := strings.TrimSuffix(string(chunk), "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	env := model.IngestEnvelope{
		Source:   model.OriginFile,
		Filename: filepath.Base(path),
		Lines:    lines,
	}
	if env.Empty() {
		return nil
	}
	select {
	case s.ch <- env:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Lines returns the envelope channel. It is closed after Stop.
func (s *FileWatchSource) Lines() <-chan model.IngestEnvelope { return s.ch }

// Stop ends the watch and closes the envelope channel.
func (s *FileWatchSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.wg.Wait()
		close(s.ch)
	})
}

// Name returns "file".
func (s *FileWatchSource) Name() string { return "file" }
