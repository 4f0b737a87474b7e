// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Toolbox is what the loop needs from the tool layer: the definitions sent
// to the model, a category per tool for result routing, and execution.
//
// Execute reports lookups that find nothing as ordinary results. A returned
// error is absorbed by the loop and handed to the model as
// {"error": "<message>"}.
type Toolbox interface {
	Definitions() []provider.ToolDefinition
	Category(name string) string
	Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// ActivityMarker is the text streamed immediately before a tool runs.
func ActivityMarker(tool string) string {
	return fmt.Sprintf("\n[Searching: %s...]\n", tool)
}

// executeCall runs one tool call and always produces a result payload.
func (l *Loop) executeCall(ctx context.Context, call conversation.ToolCall) map[string]any {
	ctx, span := tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	if l.tools == nil {
		return map[string]any{"error": "Unknown tool: " + call.Name}
	}

	slog.Debug("executing tool", "tool", call.Name, "call_id", call.ID)
	result, err := l.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("tool execution failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return map[string]any{"error": err.Error()}
	}
	if result == nil {
		result = map[string]any{}
	}
	return result
}

func (l *Loop) definitions() []provider.ToolDefinition {
	if l.tools == nil {
		return nil
	}
	return l.tools.Definitions()
}

func (l *Loop) category(name string) string {
	if l.tools == nil {
		return ""
	}
	return l.tools.Category(name)
}
