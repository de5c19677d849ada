package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/logwatch/internal/detect"
	"github.com/tinytelemetry/logwatch/internal/duckdb"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const sampleAuthLog = `Jan 15 10:22:10 web1 sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2
Jan 15 10:22:11 web1 sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2
Jan 15 10:22:12 web1 sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2
Jan 15 10:22:13 web1 sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2
Jan 15 10:22:14 web1 sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2
Jan 15 10:23:00 web1 kernel: trojan signature found in /tmp/x
`

func newTestServer(t *testing.T) (*Server, *duckdb.Store, http.Handler) {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coord := pipeline.New(store, pipeline.Options{
		Normalizer: ingest.NewNormalizerWithClock(func() time.Time {
			return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
		}),
	})
	srv := NewServer("", coord, store)
	return srv, store, srv.Handler()
}

func doRequest(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return doRequest(r, http.MethodPost, "/api/upload", &buf, mw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)

	w := doRequest(r, http.MethodGet, "/api/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "online" {
		t.Errorf("status = %v, want online", body["status"])
	}
	if body["version"] != model.Version {
		t.Errorf("version = %v, want %s", body["version"], model.Version)
	}
	if body["mode"] != "LIVE" {
		t.Errorf("mode = %v, want LIVE", body["mode"])
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, _, r := newTestServer(t)

	w := doRequest(r, http.MethodPost, "/api/health", nil, "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestUploadThenAnalyze(t *testing.T) {
	_, _, r := newTestServer(t)

	w := upload(t, r, "auth.log", sampleAuthLog)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d; body: %s", w.Code, w.Body.String())
	}
	var up struct {
		Status    string `json:"status"`
		Message   string `json:"message"`
		Count     int    `json:"count"`
		NewAlerts int    `json:"new_alerts"`
	}
	decode(t, w, &up)
	if up.Status != "success" || up.Count != 6 || up.Message != "Processed 6 log entries" {
		t.Errorf("unexpected upload response: %+v", up)
	}
	if up.NewAlerts != 2 {
		t.Errorf("new_alerts = %d, want 2", up.NewAlerts)
	}

	w = doRequest(r, http.MethodGet, "/api/analyze", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", w.Code)
	}
	var analysis model.Analysis
	decode(t, w, &analysis)
	if analysis.TotalLogs != 6 {
		t.Errorf("total_logs = %d, want 6", analysis.TotalLogs)
	}
	if analysis.Stats.CriticalCount != 1 || analysis.Stats.HighCount != 1 {
		t.Errorf("stats = %+v", analysis.Stats)
	}

	w = doRequest(r, http.MethodGet, "/api/stats", nil, "")
	var stats model.LiveStats
	decode(t, w, &stats)
	if stats.TotalLogs != 6 || stats.TotalAlerts != 2 {
		t.Errorf("live stats = %+v", stats)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	_, _, r := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()
	w := doRequest(r, http.MethodPost, "/api/upload", &buf, mw.FormDataContentType())

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "No file provided" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestUpload_InvalidUTF8Dropped(t *testing.T) {
	_, store, r := newTestServer(t)

	w := upload(t, r, "bin.log", "kernel: bad \xff\xfe bytes\n")
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}
	logs, err := store.RecentLogs(10, "")
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "kernel: bad  bytes" {
		t.Errorf("stored = %+v", logs)
	}
}

func TestLogsEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)
	upload(t, r, "auth.log", sampleAuthLog)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 6},
		{"?limit=2", http.StatusOK, 2},
		{"?severity=error", http.StatusOK, 5},
		{"?severity=warning", http.StatusOK, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?severity=bogus", http.StatusOK, 0},
		{"?limit=1000", http.StatusOK, 6},
		{"?limit=1001", http.StatusBadRequest, 0},
		{"?limit=1099511627776", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		w := doRequest(r, http.MethodGet, "/api/logs"+tt.query, nil, "")
		if w.Code != tt.code {
			t.Errorf("GET /api/logs%s status = %d, want %d", tt.query, w.Code, tt.code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var logs []model.LogRecord
		decode(t, w, &logs)
		if len(logs) != tt.count {
			t.Errorf("GET /api/logs%s returned %d, want %d", tt.query, len(logs), tt.count)
		}
	}
}

func TestTimelineEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)
	upload(t, r, "auth.log", sampleAuthLog)

	w := doRequest(r, http.MethodGet, "/api/timeline", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", w.Code)
	}
	var timeline []model.TimelineEntry
	decode(t, w, &timeline)
	if len(timeline) != 2 {
		t.Fatalf("timeline entries = %d, want 2", len(timeline))
	}
	if timeline[0].Time != "Jan 15 10:22:10" {
		t.Errorf("first entry time = %q", timeline[0].Time)
	}
}

func TestReportEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)
	upload(t, r, "auth.log", sampleAuthLog)

	w := doRequest(r, http.MethodGet, "/api/report", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d; body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "LogWatch_Report_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestClearEndpoint(t *testing.T) {
	_, store, r := newTestServer(t)
	upload(t, r, "auth.log", sampleAuthLog)

	w := doRequest(r, http.MethodPost, "/api/clear", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	count, err := store.TotalLogCount()
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 0 {
		t.Errorf("count after clear = %d", count)
	}

	w = doRequest(r, http.MethodGet, "/api/stats", nil, "")
	var stats model.LiveStats
	decode(t, w, &stats)
	if stats != (model.LiveStats{}) {
		t.Errorf("stats after clear = %+v", stats)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)

	w := doRequest(r, http.MethodGet, "/api/schema", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ip_address") {
		t.Errorf("schema body missing ip_address: %s", w.Body.String())
	}
}

func TestQueryEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)
	upload(t, r, "auth.log", sampleAuthLog)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"select", `{"sql": "SELECT COUNT(*) as cnt FROM logs"}`, http.StatusOK},
		{"with", `{"sql": "WITH c AS (SELECT COUNT(*) as cnt FROM logs) SELECT cnt FROM c"}`, http.StatusOK},
		{"insert", `{"sql": "INSERT INTO logs (message) VALUES ('hack')"}`, http.StatusBadRequest},
		{"drop", `{"sql": "DROP TABLE logs"}`, http.StatusBadRequest},
		{"copy", `{"sql": "SELECT 1; COPY logs TO '/tmp/evil.csv'"}`, http.StatusBadRequest},
		{"attach", `{"sql": "SELECT 1; ATTACH '/tmp/evil.db'"}`, http.StatusBadRequest},
		{"empty", `{"sql": ""}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/query", bytes.NewBufferString(tt.body), "application/json")
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

func TestQueryEndpoint_WrongMethod(t *testing.T) {
	_, _, r := newTestServer(t)

	w := doRequest(r, http.MethodGet, "/api/query", nil, "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("query GET status = %d, want 405 or 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, r := newTestServer(t)
	doRequest(r, http.MethodGet, "/api/health", nil, "")

	w := doRequest(r, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `logwatch_http_requests_total{method="GET",path="/api/health",status="200"}`) {
		t.Error("metrics body missing request counter")
	}
}

func TestWebSocketRouteMounted(t *testing.T) {
	var hit bool
	srv := NewServer("", &stubService{}, nil, WithWebSocket(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})))

	doRequest(srv.Handler(), http.MethodGet, "/api/ws", nil, "")
	if !hit {
		t.Error("/api/ws did not reach the websocket handler")
	}
}

type stubService struct {
	model.ReadAPI
	err error
}

func (s *stubService) Analyze(context.Context) (*model.Analysis, error) { return nil, s.err }
func (s *stubService) Ingest(context.Context, model.IngestEnvelope) (*pipeline.IngestResult, error) {
	return nil, s.err
}
func (s *stubService) Clear(context.Context) error { return s.err }
func (s *stubService) Report(context.Context) (*pipeline.RenderedReport, error) {
	return nil, s.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &detect.ValidationError{Index: 3, Reason: "nil record"}, http.StatusBadRequest},
		{"storage", &duckdb.StorageError{Op: "all logs", Err: errors.New("io")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer("", &stubService{err: tt.err}, nil)
			w := doRequest(srv.Handler(), http.MethodGet, "/api/analyze", nil, "")
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			var body map[string]string
			decode(t, w, &body)
			if body["error"] == "" {
				t.Error("missing error field")
			}
		})
	}
}

func TestGinRecovery(t *testing.T) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := doRequest(r, http.MethodGet, "/panic", nil, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic recovery status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
