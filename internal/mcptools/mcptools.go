// Package mcptools imports the tools of an upstream MCP server so the agent
// can call them like built-in ones.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gaspardpetit/agentbridge/internal/logx"
	"github.com/gaspardpetit/agentbridge/internal/secret"
	"github.com/gaspardpetit/agentbridge/internal/tools"
)

const defaultTimeout = 10 * time.Second

// Config selects the upstream server.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
	// Prefix is prepended to every imported tool name.
	Prefix string
}

// Source is a live connection to an MCP server over streamable HTTP.
type Source struct {
	cl      *client.Client
	cfg     Config
	server  string
	version string
}

// Connect starts the client and performs the initialize handshake.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcptools: url not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	opts := []transport.StreamableHTTPCOption{transport.WithHTTPTimeout(cfg.Timeout)}
	if cfg.Token != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + cfg.Token}))
	}
	cl, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("mcptools: client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := cl.Start(ctx); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("mcptools: start: %w", err)
	}
	ir, err := cl.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "agentbridge", Version: "1.0.0"},
		},
	})
	if err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("mcptools: initialize: %w", err)
	}
	logx.Log.Info().
		Str("url", secret.MaskURL(cfg.URL)).
		Str("server", ir.ServerInfo.Name).
		Str("protocol", ir.ProtocolVersion).
		Msg("mcp tool source connected")
	return &Source{cl: cl, cfg: cfg, server: ir.ServerInfo.Name, version: ir.ProtocolVersion}, nil
}

// Tools lists the upstream tools as registration entries. Each entry calls
// back into the server when invoked.
func (s *Source) Tools(ctx context.Context) ([]tools.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	res, err := s.cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcptools: tools/list: %w", err)
	}
	out := make([]tools.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, s.convert(t))
	}
	return out, nil
}

// Server reports the upstream server name and negotiated protocol version.
func (s *Source) Server() (name, protocol string) { return s.server, s.version }

// Close ends the session with the server.
func (s *Source) Close() error { return s.cl.Close() }

// Load connects, lists the tools and returns them with the open Source.
func Load(ctx context.Context, cfg Config) (*Source, []tools.Tool, error) {
	src, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ts, err := src.Tools(ctx)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return src, ts, nil
}

func (s *Source) convert(t mcp.Tool) tools.Tool {
	params := schemaParams(t.InputSchema)
	remote := t.Name
	return tools.Tool{
		Name:        s.cfg.Prefix + t.Name,
		Description: t.Description,
		Params:      params,
		Fn: func(ctx context.Context, args []any) (any, error) {
			named := make(map[string]any, len(params))
			for i, p := range params {
				if i < len(args) && args[i] != nil {
					named[p.Name] = args[i]
				}
			}
			return s.call(ctx, remote, named)
		},
	}
}

func (s *Source) call(ctx context.Context, name string, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	res, err := s.cl.CallTool(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	text := joinText(res.Content)
	if res.IsError {
		if text == "" {
			text = name + " failed"
		}
		return nil, errors.New(text)
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaParams flattens an object schema into ordered parameters: required
// names first in their listed order, then optional ones alphabetically.
func schemaParams(schema mcp.ToolInputSchema) []tools.Param {
	required := make(map[string]bool, len(schema.Required))
	var params []tools.Param
	for _, name := range schema.Required {
		if _, ok := schema.Properties[name]; !ok || required[name] {
			continue
		}
		required[name] = true
		params = append(params, describe(name, schema.Properties[name], false))
	}
	var optional []string
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		params = append(params, describe(name, schema.Properties[name], true))
	}
	return params
}

func describe(name string, prop any, optional bool) tools.Param {
	p := tools.Param{Name: name, Type: "any", Optional: optional}
	m, ok := prop.(map[string]any)
	if !ok {
		// typed property values still marshal to the same object shape
		b, err := json.Marshal(prop)
		if err != nil || json.Unmarshal(b, &m) != nil {
			return p
		}
	}
	if v, ok := m["type"].(string); ok {
		p.Type = v
	}
	if v, ok := m["description"].(string); ok {
		p.Description = v
	}
	return p
}
