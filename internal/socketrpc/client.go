package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// Client implements model.ReadAPI over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
// The connection deadline is the earlier of ctx's deadline and 30s.
func (c *Client) call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Analyze(ctx context.Context) (*model.Analysis, error) {
	var result model.Analysis
	if err := c.call(ctx, "Analyze", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Timeline(ctx context.Context) ([]model.TimelineEntry, error) {
	var result []model.TimelineEntry
	err := c.call(ctx, "Timeline", nil, &result)
	return result, err
}

func (c *Client) Stats(ctx context.Context) (model.LiveStats, error) {
	var result model.LiveStats
	err := c.call(ctx, "Stats", nil, &result)
	return result, err
}

func (c *Client) RecentLogs(ctx context.Context, limit int, severity string) ([]model.LogRecord, error) {
	var result []model.LogRecord
	err := c.call(ctx, "RecentLogs", map[string]interface{}{"Limit": limit, "Severity": severity}, &result)
	return result, err
}

func (c *Client) TotalLogCount(ctx context.Context) (int64, error) {
	var result int64
	err := c.call(ctx, "TotalLogCount", nil, &result)
	return result, err
}

var _ model.ReadAPI = (*Client)(nil)
