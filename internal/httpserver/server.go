package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/logwatch/internal/detect"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/pipeline"
	"github.com/tinytelemetry/logwatch/internal/rules"
)

// maxUploadBytes bounds an uploaded log file.
const maxUploadBytes = 64 << 20

// Service is the ingestion and analysis surface the API drives.
type Service interface {
	model.ReadAPI
	Ingest(ctx context.Context, env model.IngestEnvelope) (*pipeline.IngestResult, error)
	Clear(ctx context.Context) error
	Report(ctx context.Context) (*pipeline.RenderedReport, error)
}

// Server provides the LogWatch HTTP API.
type Server struct {
	addr      string
	svc       Service
	schema    model.SchemaQuerier
	ws        http.Handler
	mode      string
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithWebSocket serves live updates from h on /api/ws.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) { s.ws = h }
}

// WithMode sets the mode reported by the health endpoint.
func WithMode(mode string) Option {
	return func(s *Server) { s.mode = mode }
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, svc Service, schema model.SchemaQuerier, opts ...Option) *Server {
	if addr == "" {
		addr = "0.0.0.0:5000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      addr,
		svc:       svc,
		schema:    schema,
		mode:      "LIVE",
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())
	r.MaxMultipartMemory = maxUploadBytes

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/upload", s.handleUpload)
	api.GET("/analyze", s.handleAnalyze)
	api.GET("/logs", s.handleLogs)
	api.GET("/timeline", s.handleTimeline)
	api.GET("/report", s.handleReport)
	api.POST("/clear", s.handleClear)
	api.GET("/stats", s.handleStats)
	api.GET("/schema", s.handleSchema)
	api.POST("/query", s.handleQuery)
	if s.ws != nil {
		api.GET("/ws", gin.WrapH(s.ws))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// respondError maps validation failures to 400 and everything else to 500.
func respondError(c *gin.Context, op string, err error) {
	var dv *detect.ValidationError
	var rv *rules.ValidationError
	if errors.As(err, &dv) || errors.As(err, &rv) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("httpserver: %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	logCount, err := s.svc.TotalLogCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"version":   model.Version,
		"mode":      s.mode,
		"uptime":    time.Since(s.startTime).String(),
		"log_count": logCount,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, "open upload", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		respondError(c, "read upload", err)
		return
	}

	res, err := s.svc.Ingest(c.Request.Context(), model.IngestEnvelope{
		Source:   model.OriginUpload,
		Filename: fh.Filename,
		Lines:    ingest.SplitLines(string(content)),
	})
	if err != nil {
		respondError(c, "ingest upload", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    fmt.Sprintf("Processed %d log entries", len(res.Records)),
		"count":      len(res.Records),
		"new_alerts": len(res.NewAlerts),
		"batch_id":   res.BatchID,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	analysis, err := s.svc.Analyze(c.Request.Context())
	if err != nil {
		respondError(c, "analyze", err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := model.DefaultLogsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		if n > model.MaxLogsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must not exceed %d", model.MaxLogsLimit)})
			return
		}
		limit = n
	}

	logs, err := s.svc.RecentLogs(c.Request.Context(), limit, c.Query("severity"))
	if err != nil {
		respondError(c, "logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleTimeline(c *gin.Context) {
	timeline, err := s.svc.Timeline(c.Request.Context())
	if err != nil {
		respondError(c, "timeline", err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (s *Server) handleReport(c *gin.Context) {
	rep, err := s.svc.Report(c.Request.Context())
	if err != nil {
		respondError(c, "report", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	c.Data(http.StatusOK, "application/pdf", rep.Data)
}

func (s *Server) handleClear(c *gin.Context) {
	if err := s.svc.Clear(c.Request.Context()); err != nil {
		respondError(c, "clear", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "All data cleared"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleSchema(c *gin.Context) {
	rows, err := s.schema.ExecuteQuery(
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = 'logs' ORDER BY ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	columns := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"description": s.schema.GetSchemaDescription(),
		"columns":     columns,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.schema.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
