// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package agent runs the bounded model/tool loop and exposes the chat API
// that callers use.
package agent

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxTurns bounds the number of model round trips per request.
const DefaultMaxTurns = 10

// MaxTurnsMessage is the final answer when the model is still requesting
// tools after the last allowed round trip.
const MaxTurnsMessage = "Maximum conversation turns reached."

var tracer = otel.Tracer("github.com/radchat/radchat/internal/agent")

// LoopHooks provides optional test hooks for each loop stage.
type LoopHooks struct {
	OnRoundTrip func(turn int)
	OnToolCall  func(call conversation.ToolCall)
}

// LoopConfig holds dependencies for the Loop.
type LoopConfig struct {
	Tools        Toolbox
	SystemPrompt string
	MaxTokens    int
	Hooks        *LoopHooks
}

// Loop drives a conversation through model round trips and tool
// executions until the model answers without requesting a tool or the turn
// budget runs out.
type Loop struct {
	tools        Toolbox
	systemPrompt string
	maxTokens    int
	hooks        *LoopHooks
}

// NewLoop creates a Loop with the given dependencies.
func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{
		tools:        cfg.Tools,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		hooks:        cfg.Hooks,
	}
}

// RunInput is one user message to process.
type RunInput struct {
	Adapter      provider.Adapter
	Model        string
	Conversation *conversation.Conversation
	Text         string
	MaxTurns     int
}

// RunResult is the outcome of a blocking run.
type RunResult struct {
	Text       string
	RoundTrips int
	Exhausted  bool
	Usage      provider.Usage
}

// EventKind discriminates loop stream events.
type EventKind string

const (
	EventText         EventKind = "text"
	EventToolActivity EventKind = "tool_activity"
	EventToolResult   EventKind = "tool_result"
)

// Event is one element of a streaming run. Text carries a model fragment,
// the activity marker or the max-turns message. Tool results are delivered
// separately from the text so a UI can render them by category.
type Event struct {
	Kind     EventKind
	Text     string
	Tool     string
	Category string
	Result   map[string]any
}

// Run processes in.Text to completion. The conversation is mutated in
// place; callers that share history should pass a copy.
func (l *Loop) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	maxTurns, err := l.start(in)
	if err != nil {
		return nil, err
	}

	res := &RunResult{}
	for {
		resp, err := l.roundTrip(ctx, in, res.RoundTrips+1)
		if err != nil {
			return nil, err
		}
		res.RoundTrips++
		res.Usage.InputTokens += resp.Usage.InputTokens
		res.Usage.OutputTokens += resp.Usage.OutputTokens

		if err := in.Conversation.AppendAssistant(resp.Items); err != nil {
			return nil, err
		}
		if resp.StopReason != provider.StopToolUse {
			res.Text = conversation.JoinText(resp.Items)
			return res, nil
		}

		calls := conversation.ToolCalls(resp.Items)
		results := make([]conversation.Item, 0, len(calls))
		for _, call := range calls {
			l.fireToolCall(call)
			results = append(results, conversation.Result(call.ID, l.executeCall(ctx, call)))
		}
		if err := in.Conversation.AppendToolResults(results); err != nil {
			return nil, err
		}

		if res.RoundTrips >= maxTurns {
			slog.Info("max turns reached", "model", in.Model, "max_turns", maxTurns)
			res.Text = MaxTurnsMessage
			res.Exhausted = true
			return res, nil
		}
	}
}

// RunStream is the streaming form of Run. It yields text fragments as the
// adapter produces them, an activity marker before each tool executes and
// the raw result after it. The sequence ends after the final answer, after
// the max-turns message, or with an error.
func (l *Loop) RunStream(ctx context.Context, in RunInput) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		maxTurns, err := l.start(in)
		if err != nil {
			yield(Event{}, err)
			return
		}

		for turn := 1; ; turn++ {
			resp, ok := l.streamRoundTrip(ctx, in, turn, yield)
			if !ok {
				return
			}

			if err := in.Conversation.AppendAssistant(resp.Items); err != nil {
				yield(Event{}, err)
				return
			}
			if resp.StopReason != provider.StopToolUse {
				return
			}

			calls := conversation.ToolCalls(resp.Items)
			results := make([]conversation.Item, 0, len(calls))
			for _, call := range calls {
				if !yield(Event{Kind: EventToolActivity, Text: ActivityMarker(call.Name), Tool: call.Name}, nil) {
					return
				}
				l.fireToolCall(call)
				result := l.executeCall(ctx, call)
				results = append(results, conversation.Result(call.ID, result))

				ev := Event{Kind: EventToolResult, Tool: call.Name, Category: l.category(call.Name), Result: result}
				if !yield(ev, nil) {
					return
				}
			}
			if err := in.Conversation.AppendToolResults(results); err != nil {
				yield(Event{}, err)
				return
			}

			if turn >= maxTurns {
				slog.Info("max turns reached", "model", in.Model, "max_turns", maxTurns)
				// Streamed text may end mid-line after a marker or fragment.
				yield(Event{Kind: EventText, Text: "\n" + MaxTurnsMessage}, nil)
				return
			}
		}
	}
}

// start validates in, appends the user text and returns the turn budget.
func (l *Loop) start(in RunInput) (int, error) {
	var missing []string
	if in.Adapter == nil {
		missing = append(missing, "Adapter")
	}
	if in.Conversation == nil {
		missing = append(missing, "Conversation")
	}
	if strings.TrimSpace(in.Text) == "" {
		missing = append(missing, "Text")
	}
	if len(missing) > 0 {
		return 0, radchaterr.New(radchaterr.CodeAgentLoopInvalidInput,
			"missing required fields: "+strings.Join(missing, ", "),
			radchaterr.FieldModel(in.Model))
	}

	if err := in.Conversation.AppendUserText(in.Text); err != nil {
		return 0, err
	}

	if in.MaxTurns <= 0 {
		return DefaultMaxTurns, nil
	}
	return in.MaxTurns, nil
}

func (l *Loop) request(in RunInput) provider.Request {
	return provider.Request{
		Model:        in.Model,
		SystemPrompt: l.systemPrompt,
		Conversation: in.Conversation,
		Tools:        l.definitions(),
		MaxTokens:    l.maxTokens,
	}
}

func (l *Loop) startSpan(ctx context.Context, in RunInput, turn int) (context.Context, trace.Span) {
	l.fireRoundTrip(turn)
	return tracer.Start(ctx, "agent.round_trip", trace.WithAttributes(
		attribute.String("model", in.Model),
		attribute.String("provider", in.Adapter.Name()),
		attribute.Int("turn", turn),
	))
}

func (l *Loop) roundTrip(ctx context.Context, in RunInput, turn int) (*provider.Response, error) {
	ctx, span := l.startSpan(ctx, in, turn)
	defer span.End()

	resp, err := in.Adapter.Send(ctx, l.request(in))
	if err != nil {
		endWithError(span, err)
		return nil, radchaterr.With(err, radchaterr.FieldModel(in.Model))
	}
	if resp == nil {
		err := provider.ProtocolError(in.Adapter.Name(), "adapter returned no response")
		endWithError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("stop_reason", string(resp.StopReason)))
	return resp, nil
}

// streamRoundTrip forwards text fragments to yield and returns the completed
// response. ok is false when the run must stop, either because the
// consumer stopped or because an error was yielded.
func (l *Loop) streamRoundTrip(ctx context.Context, in RunInput, turn int, yield func(Event, error) bool) (resp *provider.Response, ok bool) {
	ctx, span := l.startSpan(ctx, in, turn)
	defer span.End()

	for ev, err := range in.Adapter.SendStream(ctx, l.request(in)) {
		if err != nil {
			endWithError(span, err)
			yield(Event{}, radchaterr.With(err, radchaterr.FieldModel(in.Model)))
			return nil, false
		}
		switch ev.Type {
		case provider.EventTextDelta:
			if ev.Text == "" {
				continue
			}
			if !yield(Event{Kind: EventText, Text: ev.Text}, nil) {
				return nil, false
			}
		case provider.EventTurnComplete:
			resp = ev.Response
		}
	}

	if resp == nil {
		err := provider.ProtocolError(in.Adapter.Name(), "stream ended without a completed turn")
		endWithError(span, err)
		yield(Event{}, err)
		return nil, false
	}
	span.SetAttributes(attribute.String("stop_reason", string(resp.StopReason)))
	return resp, true
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (l *Loop) fireRoundTrip(turn int) {
	if l.hooks != nil && l.hooks.OnRoundTrip != nil {
		l.hooks.OnRoundTrip(turn)
	}
}

func (l *Loop) fireToolCall(call conversation.ToolCall) {
	if l.hooks != nil && l.hooks.OnToolCall != nil {
		l.hooks.OnToolCall(call)
	}
}
