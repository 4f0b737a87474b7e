// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package toolset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// Handler executes a tool call. Lookups that find nothing are ordinary
// results (for example {"found": false}); an error means the tool itself
// failed.
type Handler interface {
	Handle(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, name string, args map[string]any) (map[string]any, error)

func (f HandlerFunc) Handle(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return f(ctx, name, args)
}

type registration struct {
	tool    Tool
	handler Handler
}

// Registry routes tool calls by name to their handlers and supplies the
// definitions that are advertised to the model.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]registration
	order   []string
	timeout time.Duration
}

// NewRegistry creates an empty registry. A positive timeout bounds every
// call.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{tools: make(map[string]registration), timeout: timeout}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name]; !ok {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = registration{tool: tool, handler: h}
}

// Definitions returns the registered tools in registration order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].tool.Definition())
	}
	return defs
}

// Category returns the category of a registered tool, or "" if unknown.
func (r *Registry) Category(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].tool.Category
}

// ByCategory groups registered tool names by category. Names keep
// registration order.
func (r *Registry) ByCategory() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string)
	for _, name := range r.order {
		cat := r.tools[name].tool.Category
		out[cat] = append(out[cat], name)
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// Execute runs the named tool. An unknown name is answered in band with
// {"error": "Unknown tool: <name>"}. Handler failures, panics and timeouts
// are returned as errors.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result map[string]any, err error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("unknown tool requested", "tool", name)
		return map[string]any{"error": "Unknown tool: " + name}, nil
	}

	if args == nil {
		args = map[string]any{}
	}

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool handler panicked",
				"tool", name, "panic", p, "stack", string(debug.Stack()))
			result = nil
			err = radchaterr.New(radchaterr.CodeAgentToolExecuteFailure,
				fmt.Sprintf("tool %s panicked: %v", name, p), radchaterr.FieldTool(name))
		}
	}()

	start := time.Now()
	result, err = reg.handler.Handle(execCtx, name, args)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, radchaterr.Wrapf(err, radchaterr.CodeAgentToolTimeout, "tool %s timed out", name)
		}
		if radchaterr.CodeOf(err) == "" {
			err = radchaterr.Wrapf(err, radchaterr.CodeAgentToolExecuteFailure, "executing tool %s", name)
		}
		return nil, radchaterr.With(err, radchaterr.FieldTool(name))
	}
	if result == nil {
		result = map[string]any{}
	}

	slog.Debug("tool executed", "tool", name, "duration", time.Since(start))
	return result, nil
}
