package loggen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives generated events. Implementations are safe for concurrent use.
type Sink interface {
	Write(e Event) error
	Close() error
}

// DirSink appends each event to a file named after Event.File inside a directory,
// which is what a watched log directory expects.
type DirSink struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

// NewDirSink creates dir if needed. When reset is set, existing target files
// are truncated on first write.
func NewDirSink(dir string, reset bool) (*DirSink, error) {
	if dir == "" {
		return nil, errors.New("loggen: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("loggen: mkdir %s: %w", dir, err)
	}
	s := &DirSink{dir: dir, files: make(map[string]*os.File)}
	if reset {
		for _, name := range []string{AuthLog, ApacheLog, WindowsLog} {
			if err := os.Truncate(filepath.Join(dir, name), 0); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loggen: reset %s: %w", name, err)
			}
		}
	}
	return s, nil
}

func (s *DirSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files == nil {
		return errors.New("loggen: sink closed")
	}
	f, ok := s.files[e.File]
	if !ok {
		var err error
		f, err = os.OpenFile(filepath.Join(s.dir, e.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("loggen: open %s: %w", e.File, err)
		}
		s.files[e.File] = f
	}
	if _, err := f.WriteString(e.Line + "\n"); err != nil {
		return fmt.Errorf("loggen: write %s: %w", e.File, err)
	}
	return nil
}

func (s *DirSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}
	s.files = nil
	return errors.Join(errs...)
}

// TCPSink streams events as newline-delimited text to a logwatch TCP input.
// The target file is not carried on the wire.
type TCPSink struct {
	mu   sync.Mutex
	conn net.Conn
	w    *bufio.Writer
}

// DialTCP connects to addr.
func DialTCP(ctx context.Context, addr string) (*TCPSink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("loggen: dial %s: %w", addr, err)
	}
	return &TCPSink{conn: conn, w: bufio.NewWriter(conn)}, nil
}

func (s *TCPSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.WriteString(e.Line + "\n"); err != nil {
		return fmt.Errorf("loggen: send: %w", err)
	}
	return s.w.Flush()
}

func (s *TCPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.w.Flush()
	return errors.Join(flushErr, s.conn.Close())
}
