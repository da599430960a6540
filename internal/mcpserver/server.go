// Package mcpserver exposes the extraction pipeline and the journal readers
// as MCP tools over stdio, with the append-only trade log as a readable
// resource.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tradejournal/internal/journal"
	"tradejournal/internal/trade"
)

const (
	serverName    = "trading-analysis"
	serverVersion = "1.0.0"
	logMIMEType   = "application/x-jsonlines"
)

// Server wires the pipeline service and journal reader into an MCP server
type Server struct {
	service *trade.Service
	reader  *journal.Reader
	mode    trade.SaveMode
	logPath string
	mcp     *server.MCPServer
}

// New creates a new Server. Each tool invocation runs the pipeline
// synchronously; invocations are self-contained and stateless aside from the
// shared log and summary files.
func New(service *trade.Service, reader *journal.Reader, mode trade.SaveMode, logPath string) *Server {
	s := &Server{
		service: service,
		reader:  reader,
		mode:    mode,
		logPath: logPath,
	}

	m := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	m.AddTool(mcp.NewTool("extract_trade_from_image",
		mcp.WithDescription("Extract structured trade info from a trading chart screenshot using OCR + LLM."),
		mcp.WithString("image_path",
			mcp.Required(),
			mcp.Description("Path to trading chart image"),
		),
	), s.handleExtract)

	m.AddTool(mcp.NewTool("search_trades",
		mcp.WithDescription("Search logged trades by term (e.g., ticker, direction)."),
		mcp.WithString("query",
			mcp.Description("Search term"),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(10),
			mcp.Description("Maximum number of results"),
		),
	), s.handleSearch)

	m.AddTool(mcp.NewTool("get_trading_stats",
		mcp.WithDescription("Return aggregated stats from all logged trades."),
	), s.handleStats)

	m.AddResource(mcp.NewResource("file://"+logPath, "Trade Log",
		mcp.WithResourceDescription("Complete trade history in JSONL format."),
		mcp.WithMIMEType(logMIMEType),
	), s.handleLogResource)

	s.mcp = m
	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imagePath, err := req.RequireString("image_path")
	if err != nil {
		return mcp.NewToolResultError("image_path is required"), nil
	}

	summary, err := s.service.ProcessImage(imagePath, s.mode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extracting trade: %v", err)), nil
	}
	return jsonResult(summary)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", 10)

	records, err := s.reader.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("searching trades: %v", err)), nil
	}
	return jsonResult(records)
}

func (s *Server) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.reader.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("computing stats: %v", err)), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleLogResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := os.ReadFile(s.logPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading trade log: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "file://" + s.logPath,
			MIMEType: logMIMEType,
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
