// Package mcpserver serves a tools.Host over the Model Context Protocol on
// stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"summoner-insights/internal/tools"
)

const serverName = "summoner-insights"

// New builds an MCP server exposing every tool registered in host.
func New(host *tools.Host, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range host.Tools() {
		s.AddTool(Definition(t), handler(host, t.Name))
	}
	return s
}

// Definition translates a tool into its MCP declaration.
func Definition(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.TypeInteger:
			props = append(props, mcp.Min(float64(p.Min)))
			if p.Max > 0 {
				props = append(props, mcp.Max(float64(p.Max)))
			}
			if d, ok := p.Default.(int); ok {
				props = append(props, mcp.DefaultNumber(float64(d)))
			}
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			if p.Pattern != nil {
				props = append(props, mcp.Pattern(p.Pattern.String()))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

func handler(host *tools.Host, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := host.Call(ctx, name, req.GetArguments())
		body, err := resp.JSON()
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return mcp.NewToolResultError(string(body)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// ServeStdio runs the MCP server on in/out until ctx is cancelled or the
// client disconnects.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.With("component", "mcp").Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}
