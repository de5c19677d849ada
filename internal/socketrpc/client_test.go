package socketrpc_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/socketrpc"
)

// mockAPI is a minimal ReadAPI for roundtrip testing.
type mockAPI struct {
	lastLimit    int
	lastSeverity string
	failWith     error
}

func (m *mockAPI) Analyze(ctx context.Context) (*model.Analysis, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return &model.Analysis{
		Alerts: []model.Alert{{
			ID:        1,
			Type:      "Brute Force Attack",
			Severity:  model.AlertHigh,
			IPAddress: "203.0.113.66",
			LogID:     7,
		}},
		Stats: model.Statistics{
			TotalAlerts: 1,
			BySeverity:  map[string]int{model.AlertHigh: 1},
			ByType:      map[string]int{"Brute Force Attack": 1},
			HighCount:   1,
		},
		TotalLogs: 12,
	}, nil
}

func (m *mockAPI) Timeline(ctx context.Context) ([]model.TimelineEntry, error) {
	return []model.TimelineEntry{{Time: "10:00:00", Stage: "Reconnaissance", Severity: model.AlertHigh}}, nil
}

func (m *mockAPI) Stats(ctx context.Context) (model.LiveStats, error) {
	return model.LiveStats{TotalLogs: 42, TotalAlerts: 3, CriticalAlerts: 1, HighAlerts: 2}, nil
}

func (m *mockAPI) RecentLogs(ctx context.Context, limit int, severity string) ([]model.LogRecord, error) {
	m.lastLimit = limit
	m.lastSeverity = severity
	return []model.LogRecord{{
		ID:        1,
		Timestamp: "2024-01-15 10:00:00",
		Source:    "web01",
		Severity:  model.SeverityError,
		Message:   "test message",
		LogType:   model.LogTypeSyslog,
	}}, nil
}

func (m *mockAPI) TotalLogCount(ctx context.Context) (int64, error) { return 42, nil }

func startTestServer(t *testing.T, api model.ReadAPI) (string, *socketrpc.Server) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := socketrpc.NewServer(sockPath, api)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return sockPath, srv
}

func TestRoundtrip(t *testing.T) {
	api := &mockAPI{}
	sockPath, srv := startTestServer(t, api)
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	t.Run("Analyze", func(t *testing.T) {
		a, err := client.Analyze(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(a.Alerts) != 1 || a.Alerts[0].IPAddress != "203.0.113.66" || a.Alerts[0].LogID != 7 {
			t.Fatalf("unexpected alerts: %+v", a.Alerts)
		}
		if a.Stats.HighCount != 1 || a.Stats.ByType["Brute Force Attack"] != 1 {
			t.Fatalf("unexpected stats: %+v", a.Stats)
		}
		if a.TotalLogs != 12 {
			t.Fatalf("TotalLogs = %d, want 12", a.TotalLogs)
		}
	})

	t.Run("Timeline", func(t *testing.T) {
		entries, err := client.Timeline(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Stage != "Reconnaissance" {
			t.Fatalf("unexpected timeline: %v", entries)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := client.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := model.LiveStats{TotalLogs: 42, TotalAlerts: 3, CriticalAlerts: 1, HighAlerts: 2}
		if stats != want {
			t.Fatalf("Stats = %+v, want %+v", stats, want)
		}
	})

	t.Run("RecentLogs", func(t *testing.T) {
		logs, err := client.RecentLogs(ctx, 25, "ERROR")
		if err != nil {
			t.Fatal(err)
		}
		if len(logs) != 1 || logs[0].Message != "test message" {
			t.Fatalf("unexpected logs: %v", logs)
		}
		if api.lastLimit != 25 || api.lastSeverity != "ERROR" {
			t.Fatalf("params not forwarded: limit=%d severity=%q", api.lastLimit, api.lastSeverity)
		}
	})

	t.Run("TotalLogCount", func(t *testing.T) {
		count, err := client.TotalLogCount(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if count != 42 {
			t.Fatalf("got %d, want 42", count)
		}
	})
}

func TestApplicationErrorPropagates(t *testing.T) {
	sockPath, srv := startTestServer(t, &mockAPI{failWith: errors.New("storage unavailable")})
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	_, err = client.Analyze(context.Background())
	var rpcErr *socketrpc.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32000 || rpcErr.Message != "storage unavailable" {
		t.Fatalf("unexpected error: %+v", rpcErr)
	}

	// The connection stays usable after an application error.
	if _, err := client.TotalLogCount(context.Background()); err != nil {
		t.Fatalf("TotalLogCount after error: %v", err)
	}
}

func TestCancelledContextSkipsCall(t *testing.T) {
	sockPath, srv := startTestServer(t, &mockAPI{})
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Stats(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Stats with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestDialFailure(t *testing.T) {
	_, err := socketrpc.Dial(filepath.Join(t.TempDir(), "nonexistent.sock"))
	if err == nil {
		t.Fatal("expected error dialing nonexistent socket")
	}
}

func TestStartRefusesLiveSocket(t *testing.T) {
	sockPath, srv := startTestServer(t, &mockAPI{})
	defer srv.Stop()

	second := socketrpc.NewServer(sockPath, &mockAPI{})
	if err := second.Start(); err == nil {
		second.Stop()
		t.Fatal("expected second server on the same socket to fail")
	}
}

func TestServerStopCleansSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "cleanup.sock")
	srv := socketrpc.NewServer(sockPath, &mockAPI{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Stop()

	// Socket file should be removed.
	if _, err := socketrpc.Dial(sockPath); err == nil {
		t.Fatal("expected dial to fail after server stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "idempotent.sock")
	srv := socketrpc.NewServer(sockPath, &mockAPI{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	srv.Stop()
	srv.Stop()
}

func TestStopClosesConns(t *testing.T) {
	sockPath, srv := startTestServer(t, &mockAPI{})
	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung with an idle client connected")
	}

	done := make(chan error, 1)
	go func() {
		_, callErr := client.TotalLogCount(context.Background())
		done <- callErr
	}()

	select {
	case callErr := <-done:
		if callErr == nil {
			t.Fatal("expected client call to fail after server stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client call hung after server stop")
	}
}
