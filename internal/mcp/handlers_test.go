package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agent"
	"github.com/dmitriimaksimovdevelop/memguard/internal/config"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

func newTestServer(t *testing.T) *Server {
	sup := agent.New(config.DefaultConfig(), nil, resilience.RealClock)
	sup.Start()
	t.Cleanup(func() { _ = sup.GracefulShutdown(time.Second) })
	return NewServer("test", sup)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned an error result: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("expected non-empty content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleGetHealthReturnsStatus(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetHealth(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetHealth error = %v", err)
	}
	text := resultText(t, res)
	var h map[string]any
	if err := json.Unmarshal([]byte(text), &h); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if h["status"] != "healthy" {
		t.Fatalf("status = %v, want healthy", h["status"])
	}
}

func TestHandleSnapshotReturnsAnalysis(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleSnapshot(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleSnapshot error = %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "snapshotId") {
		t.Fatalf("expected snapshotId in output, got %q", text)
	}
}

func TestHandleGetLeaksReturnsEmptyArrayNotNull(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetLeaks(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetLeaks error = %v", err)
	}
	text := strings.TrimSpace(resultText(t, res))
	if text != "[]" {
		t.Fatalf("expected an empty JSON array with no leaks raised, got %q", text)
	}
}

func TestHandleGetActiveAlertsFiltersByLevel(t *testing.T) {
	s := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"level": "critical"}

	res, err := s.handleGetActiveAlerts(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetActiveAlerts error = %v", err)
	}
	text := strings.TrimSpace(resultText(t, res))
	if text != "[]" {
		t.Fatalf("expected no critical alerts on a freshly constructed supervisor, got %q", text)
	}
}
