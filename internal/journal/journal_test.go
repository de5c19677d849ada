package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func TestAppendReplayCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	seq1, err := j.Append(model.IngestEnvelope{Source: "tcp", Filename: "tcp", Lines: []string{"first"}})
	if err != nil {
		t.Fatalf("Append env1: %v", err)
	}
	seq2, err := j.Append(model.IngestEnvelope{Source: "file", Filename: "auth.log", Lines: []string{"second", "third"}})
	if err != nil {
		t.Fatalf("Append env2: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence did not advance: seq1=%d seq2=%d", seq1, seq2)
	}

	if err := j.Commit(seq1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := j.Committed(); got != seq1 {
		t.Fatalf("Committed = %d, want %d", got, seq1)
	}

	var replayed []model.IngestEnvelope
	err = j.Replay(func(_ uint64, env model.IngestEnvelope) error {
		replayed = append(replayed, env)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 {
		t.Fatalf("Replay returned %d envelopes, want 1", len(replayed))
	}
	if replayed[0].Filename != "auth.log" || len(replayed[0].Lines) != 2 || replayed[0].Lines[1] != "third" {
		t.Fatalf("Replay envelope = %+v", replayed[0])
	}
}

func TestCommitSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last uint64
	for _, line := range []string{"a", "b", "c"} {
		if last, err = j.Append(model.IngestEnvelope{Source: "stdin", Lines: []string{line}}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := j.Commit(last - 1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	var lines []string
	if err := j2.Replay(func(_ uint64, env model.IngestEnvelope) error {
		lines = append(lines, env.Lines...)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(lines) != 1 || lines[0] != "c" {
		t.Fatalf("Replay after reopen = %v, want [c]", lines)
	}

	seq, err := j2.Append(model.IngestEnvelope{Source: "stdin", Lines: []string{"d"}})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if seq <= last {
		t.Fatalf("sequence reused after reopen: got %d, last %d", seq, last)
	}
}

func TestOpenIgnoresPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Append(model.IngestEnvelope{Source: "tcp", Lines: []string{"ok"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate torn write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"seq":999,"envelope":`); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close torn writer: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	var replayed []string
	err = j2.Replay(func(_ uint64, env model.IngestEnvelope) error {
		replayed = append(replayed, env.Lines...)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay second: %v", err)
	}
	if len(replayed) != 1 || replayed[0] != "ok" {
		t.Fatalf("Replay after torn write=%v, want [ok]", replayed)
	}
}

func TestAppendAfterClose(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "ingest.journal"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := j.Append(model.IngestEnvelope{Lines: []string{"x"}}); err == nil {
		t.Fatal("Append after Close should fail")
	}
}
