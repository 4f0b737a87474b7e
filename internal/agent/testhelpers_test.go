// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package agent_test

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/session"
	"github.com/stretchr/testify/require"
)

// step is one scripted round trip. Streaming emits fragments as text deltas
// before completing with resp.
type step struct {
	fragments []string
	resp      *provider.Response
	err       error
}

// scriptedAdapter replays steps in order, repeating the last one once the
// script is exhausted, and records the conversation it was sent each time.
type scriptedAdapter struct {
	name string

	mu    sync.Mutex
	steps []step
	calls int
	seen  [][]conversation.Turn
	reqs  []provider.Request
}

var _ provider.Adapter = (*scriptedAdapter)(nil)

func newScriptedAdapter(steps ...step) *scriptedAdapter {
	return &scriptedAdapter{name: "scripted", steps: steps}
}

func (a *scriptedAdapter) Name() string        { return a.name }
func (a *scriptedAdapter) Kind() provider.Kind { return provider.KindBlock }

func (a *scriptedAdapter) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "stub-model", Name: "Stub", Adapter: a.name}}, nil
}

func (a *scriptedAdapter) next(req provider.Request) step {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, req.Conversation.Turns())
	a.reqs = append(a.reqs, req)
	idx := min(a.calls, len(a.steps)-1)
	a.calls++
	return a.steps[idx]
}

func (a *scriptedAdapter) Send(_ context.Context, req provider.Request) (*provider.Response, error) {
	s := a.next(req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (a *scriptedAdapter) SendStream(_ context.Context, req provider.Request) iter.Seq2[provider.Event, error] {
	return func(yield func(provider.Event, error) bool) {
		s := a.next(req)
		for _, f := range s.fragments {
			if !yield(provider.Event{Type: provider.EventTextDelta, Text: f}, nil) {
				return
			}
		}
		if s.err != nil {
			yield(provider.Event{}, s.err)
			return
		}
		yield(provider.Event{Type: provider.EventTurnComplete, Response: s.resp}, nil)
	}
}

func (a *scriptedAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *scriptedAdapter) Seen(i int) []conversation.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen[i]
}

func textStep(text string) step {
	return step{
		fragments: []string{text},
		resp:      provider.NewResponse([]conversation.Item{conversation.Text(text)}, "end_turn", provider.Usage{InputTokens: 10, OutputTokens: 5}),
	}
}

func toolStep(items ...conversation.Item) step {
	var fragments []string
	for _, it := range items {
		if it.Kind == conversation.KindText {
			fragments = append(fragments, it.Text)
		}
	}
	return step{
		fragments: fragments,
		resp:      provider.NewResponse(items, "tool_use", provider.Usage{InputTokens: 10, OutputTokens: 5}),
	}
}

type toolCall struct {
	name string
	args map[string]any
}

// stubToolbox answers every tool with a fixed result unless a per-tool
// function is configured.
type stubToolbox struct {
	mu      sync.Mutex
	results map[string]func(args map[string]any) (map[string]any, error)
	calls   []toolCall
}

var _ agent.Toolbox = (*stubToolbox)(nil)

func newStubToolbox() *stubToolbox {
	return &stubToolbox{results: make(map[string]func(map[string]any) (map[string]any, error))}
}

func (s *stubToolbox) on(name string, fn func(args map[string]any) (map[string]any, error)) *stubToolbox {
	s.results[name] = fn
	return s
}

func (s *stubToolbox) Definitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{Name: "get_procedure_contact", Description: "procedure contact", Parameters: map[string]any{"type": "object"}},
		{Name: "search_acr_criteria", Description: "criteria", Parameters: map[string]any{"type": "object"}},
	}
}

func (s *stubToolbox) Category(name string) string {
	switch name {
	case "get_procedure_contact", "search_phone_directory":
		return "contact"
	case "search_acr_criteria":
		return "criteria"
	}
	return ""
}

func (s *stubToolbox) Execute(_ context.Context, name string, args map[string]any) (map[string]any, error) {
	s.mu.Lock()
	s.calls = append(s.calls, toolCall{name: name, args: args})
	fn := s.results[name]
	s.mu.Unlock()

	if fn == nil {
		return map[string]any{"found": false}, nil
	}
	return fn(args)
}

func (s *stubToolbox) Calls() []toolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]toolCall(nil), s.calls...)
}

// newService wires a Service whose every model resolves to adapter.
func newService(t *testing.T, adapter provider.Adapter, tools agent.Toolbox) (*agent.Service, *session.Store) {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register(adapter)
	reg.SetFallback(adapter.Name())

	store, err := session.NewStore(16, time.Hour)
	require.NoError(t, err)

	svc, err := agent.NewService(agent.ServiceConfig{
		Resolver:     reg,
		Sessions:     store,
		Tools:        tools,
		DefaultModel: "stub-model",
	})
	require.NoError(t, err)
	return svc, store
}

func collectEvents(t *testing.T, seq iter.Seq2[agent.Event, error]) ([]agent.Event, error) {
	t.Helper()
	var events []agent.Event
	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
