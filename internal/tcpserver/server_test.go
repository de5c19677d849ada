package tcpserver

import (
	"net"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func TestNewServer_DefaultLocalhostAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("")
	if got := s.Addr(); got != "127.0.0.1:5140" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:5140")
	}
}

func TestNewServer_UsesConfiguredAddressAndBuffers(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:6000", ServerConfig{
		LineChannelSize: 64,
		MaxLineSize:     2048,
	})

	if got := s.Addr(); got != "0.0.0.0:6000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:6000")
	}
	if got := cap(s.lineChan); got != 64 {
		t.Fatalf("line channel cap = %d, want %d", got, 64)
	}
	if got := s.maxLineSize; got != 2048 {
		t.Fatalf("max line size = %d, want %d", got, 2048)
	}
}

func TestServer_ReceivesLines(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("Failed password for root from 10.0.0.1\r\n\n   \nsecond line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.Close()

	want := []string{"Failed password for root from 10.0.0.1", "second line"}
	for i, w := range want {
		select {
		case env := <-s.Lines():
			if env.Source != model.OriginTCP {
				t.Errorf("envelope %d source = %q", i, env.Source)
			}
			if env.Filename != "127.0.0.1" {
				t.Errorf("envelope %d filename = %q, want peer host", i, env.Filename)
			}
			if len(env.Lines) != 1 || env.Lines[0] != w {
				t.Errorf("envelope %d lines = %q, want [%q]", i, env.Lines, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for line %d", i)
		}
	}
}

func TestServer_StopClosesChannelWithOpenConnection(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on an idle connection")
	}
	if _, ok := <-s.Lines(); ok {
		t.Fatal("expected closed channel")
	}
}
