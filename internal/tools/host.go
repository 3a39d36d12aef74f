// Package tools exposes the analytics reports as named tools with validated
// parameters and a uniform response envelope. Transports (MCP stdio, HTTP)
// adapt a Host; they never call the engine directly.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/metrics"
)

// HandlerFunc runs a tool with validated arguments and returns a one-line
// summary plus the structured payload.
type HandlerFunc func(ctx context.Context, args Args) (summary string, data any, err error)

type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     HandlerFunc
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Response is what every tool call returns, successful or not.
type Response struct {
	OK      bool       `json:"ok"`
	Tool    string     `json:"tool"`
	Summary string     `json:"summary,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// JSON encodes the envelope.
func (r Response) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Host holds the registered tools.
type Host struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type HostOption func(*Host)

func WithMetrics(m *metrics.Metrics) HostOption {
	return func(h *Host) { h.metrics = m }
}

func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

func NewHost(opts ...HostOption) *Host {
	h := &Host{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "tools")
	return h
}

// AddTool registers t. Names are unique.
func (h *Host) AddTool(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool needs a name and a handler")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.tools[t.Name]; ok {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	h.tools[t.Name] = t
	return nil
}

// Tools lists the registered tools sorted by name.
func (h *Host) Tools() []Tool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Tool, 0, len(h.tools))
	for _, t := range h.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (h *Host) Tool(name string) (Tool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tools[name]
	return t, ok
}

// Call validates raw arguments against the tool's parameters, runs it and
// wraps the outcome. Errors never escape; they become the error envelope.
func (h *Host) Call(ctx context.Context, name string, raw map[string]any) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = h.fail(name, fmt.Errorf("tool %s panicked: %v", name, r))
		}
	}()

	t, ok := h.Tool(name)
	if !ok {
		return h.fail(name, fault.NotFound("unknown tool %q", name))
	}

	args, err := bind(t.Params, raw)
	if err != nil {
		return h.fail(name, err)
	}

	summary, data, err := t.Handler(ctx, args)
	if err != nil {
		return h.fail(name, err)
	}

	h.metrics.ToolCall(name, "ok")
	return Response{OK: true, Tool: name, Summary: summary, Data: data}
}

func (h *Host) fail(name string, err error) Response {
	kind := fault.KindOf(err)
	msg := fault.Message(err)
	if kind == fault.KindInternal {
		h.logger.Error("tool failed", "tool", name, "error", err)
		msg = "internal error"
	} else {
		h.logger.Debug("tool rejected", "tool", name, "kind", kind, "error", err)
	}
	h.metrics.ToolCall(name, string(kind))
	return Response{OK: false, Tool: name, Error: &ErrorBody{Kind: kind, Message: msg}}
}
