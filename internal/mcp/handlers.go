package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmitriimaksimovdevelop/memguard/internal/alert"
	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/snapshot"
)

// snapshotTimeout bounds how long the snapshot tool waits on the admission
// queue before giving up, matching the Supervisor's own sample timeout
// order of magnitude.
const snapshotTimeout = 10 * time.Second

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h := s.sup.GetHealth()
	jsonData, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	args := getArgs(request)
	opts := snapshot.Options{GCBeforeCapture: boolArg(args, "gcBeforeCapture", false)}

	h, err := s.sup.TakeSnapshot(ctx, opts)
	if err != nil {
		return errResult(fmt.Sprintf("snapshot failed: %v", err)), nil
	}

	ctx, span := s.sup.Tracer().StartAnalysis(ctx, "analyze")
	a := snapshot.Analyze(ctx, h, snapshot.AnalysisOptions{IncludeRecommendations: true})
	span.End()
	jsonData, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

func (s *Server) handleGetLeaks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := s.sup.Alerts().GetActiveAlerts(alert.Filter{Source: "detector"})
	if active == nil {
		active = []model.Alert{}
	}
	jsonData, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

func (s *Server) handleGetActiveAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	filter := alert.Filter{Level: model.AlertLevel(stringArg(args, "level", ""))}

	active := s.sup.Alerts().GetActiveAlerts(filter)
	if active == nil {
		active = []model.Alert{}
	}
	jsonData, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// boolArg extracts a boolean argument with a default value.
func boolArg(args map[string]interface{}, key string, defaultVal bool) bool {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	b, ok := val.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true). This is
// returned as a tool-level error, not a transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
