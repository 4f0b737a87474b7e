// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package agent_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/provider/openai"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_SingleToolCallThenAnswer(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(conversation.Call("call_1", "get_procedure_contact", map[string]any{"procedure": "picc_line"})),
		textStep("Page **Dr. X** for the PICC line."),
	)
	tools := newStubToolbox().on("get_procedure_contact", func(map[string]any) (map[string]any, error) {
		return map[string]any{"contact": map[string]any{"name": "Dr. X"}}, nil
	})
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools, SystemPrompt: "sys"})

	conv := conversation.New()
	res, err := loop.Run(context.Background(), agent.RunInput{
		Adapter:      adapter,
		Model:        "stub-model",
		Conversation: conv,
		Text:         "What is the contact for VIR?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Page **Dr. X** for the PICC line.", res.Text)
	assert.Equal(t, 2, res.RoundTrips)
	assert.False(t, res.Exhausted)
	assert.Equal(t, provider.Usage{InputTokens: 20, OutputTokens: 10}, res.Usage)

	calls := tools.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_procedure_contact", calls[0].name)
	assert.Equal(t, map[string]any{"procedure": "picc_line"}, calls[0].args)

	turns := conv.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, conversation.RoleUser, turns[0].Role)
	assert.Equal(t, conversation.RoleAssistant, turns[1].Role)
	require.Len(t, turns[2].Items, 1)
	result := turns[2].Items[0]
	assert.Equal(t, conversation.KindToolResult, result.Kind)
	assert.Equal(t, "call_1", result.Result.CallID)
	assert.Equal(t, map[string]any{"contact": map[string]any{"name": "Dr. X"}}, result.Result.Payload)
	assert.Equal(t, conversation.RoleAssistant, turns[3].Role)
	assert.True(t, conv.Stable())

	// The second round trip saw the tool result.
	assert.Len(t, adapter.Seen(1), 3)
	assert.Equal(t, "sys", adapter.reqs[0].SystemPrompt)
	assert.Len(t, adapter.reqs[0].Tools, 2)
}

func TestLoop_MaxTurnsReached(t *testing.T) {
	for _, maxTurns := range []int{1, 3, 0} {
		t.Run(fmt.Sprintf("max_turns=%d", maxTurns), func(t *testing.T) {
			var n atomic.Int32
			adapter := newScriptedAdapter()
			adapter.steps = []step{toolStep(conversation.Call("call", "search_acr_criteria", map[string]any{"query": "headache"}))}
			tools := newStubToolbox()
			loop := agent.NewLoop(agent.LoopConfig{
				Tools: tools,
				Hooks: &agent.LoopHooks{OnRoundTrip: func(int) { n.Add(1) }},
			})

			res, err := loop.Run(context.Background(), agent.RunInput{
				Adapter:      adapter,
				Model:        "stub-model",
				Conversation: conversation.New(),
				Text:         "loop forever",
				MaxTurns:     maxTurns,
			})
			require.NoError(t, err)

			want := maxTurns
			if want == 0 {
				want = agent.DefaultMaxTurns
			}
			assert.Equal(t, agent.MaxTurnsMessage, res.Text)
			assert.Equal(t, "Maximum conversation turns reached.", res.Text)
			assert.True(t, res.Exhausted)
			assert.Equal(t, want, res.RoundTrips)
			assert.Equal(t, want, adapter.Calls())
			assert.Equal(t, int32(want), n.Load())
			assert.Len(t, tools.Calls(), want)
		})
	}
}

func TestLoop_ExhaustedConversationAcceptsNextMessage(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(conversation.Call("call_1", "search_acr_criteria", nil)),
		textStep("done"),
	)
	loop := agent.NewLoop(agent.LoopConfig{Tools: newStubToolbox()})
	conv := conversation.New()

	res, err := loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "first", MaxTurns: 1,
	})
	require.NoError(t, err)
	require.True(t, res.Exhausted)

	res, err = loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "second", MaxTurns: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)

	turns := conv.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, conversation.KindToolResult, turns[2].Items[0].Kind)
	assert.Equal(t, conversation.Text("second"), turns[2].Items[1], "user text joins the pending result turn")
}

func TestLoop_ToolCallsRunInEmittedOrder(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(
			conversation.Text("Checking both."),
			conversation.Call("b", "search_acr_criteria", map[string]any{"query": "pe"}),
			conversation.Call("a", "get_procedure_contact", map[string]any{"procedure": "drain"}),
		),
		textStep("ok"),
	)
	tools := newStubToolbox()
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools})
	conv := conversation.New()

	_, err := loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "q",
	})
	require.NoError(t, err)

	calls := tools.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "search_acr_criteria", calls[0].name)
	assert.Equal(t, "get_procedure_contact", calls[1].name)

	results := conv.Turns()[2].Items
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Result.CallID)
	assert.Equal(t, "a", results[1].Result.CallID)
}

func TestLoop_ToolFailureBecomesErrorResult(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(conversation.Call("call_1", "get_procedure_contact", map[string]any{"procedure": "biopsy"})),
		textStep("Sorry, the directory is unavailable."),
	)
	tools := newStubToolbox().on("get_procedure_contact", func(map[string]any) (map[string]any, error) {
		return nil, errors.New("directory offline")
	})
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools})
	conv := conversation.New()

	res, err := loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "biopsy contact?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, the directory is unavailable.", res.Text)

	payload := conv.Turns()[2].Items[0].Result.Payload
	assert.Equal(t, map[string]any{"error": "directory offline"}, payload)
}

func TestLoop_NoToolboxAnswersUnknownTool(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(conversation.Call("call_1", "list_acr_topics", nil)),
		textStep("ok"),
	)
	loop := agent.NewLoop(agent.LoopConfig{})
	conv := conversation.New()

	_, err := loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "q",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "Unknown tool: list_acr_topics"}, conv.Turns()[2].Items[0].Result.Payload)
	assert.Empty(t, adapter.reqs[0].Tools)
}

func TestLoop_AdapterErrorPropagates(t *testing.T) {
	upstream := provider.UpstreamError("scripted", http.StatusServiceUnavailable, errors.New("unavailable"))
	adapter := newScriptedAdapter(step{err: upstream})
	loop := agent.NewLoop(agent.LoopConfig{Tools: newStubToolbox()})

	_, err := loop.Run(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "q",
	})
	require.Error(t, err)
	assert.True(t, radchaterr.IsUpstreamFailure(err))
	assert.Equal(t, http.StatusServiceUnavailable, radchaterr.StatusCodeOf(err))
	assert.Equal(t, 1, adapter.Calls(), "errors are not retried")
}

func TestLoop_InvalidInput(t *testing.T) {
	loop := agent.NewLoop(agent.LoopConfig{})
	adapter := newScriptedAdapter(textStep("x"))

	tests := []struct {
		name string
		in   agent.RunInput
	}{
		{name: "no adapter", in: agent.RunInput{Conversation: conversation.New(), Text: "q"}},
		{name: "no conversation", in: agent.RunInput{Adapter: adapter, Text: "q"}},
		{name: "blank text", in: agent.RunInput{Adapter: adapter, Conversation: conversation.New(), Text: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loop.Run(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, radchaterr.HasCode(err, radchaterr.CodeAgentLoopInvalidInput))

			_, err = collectEvents(t, loop.RunStream(context.Background(), tt.in))
			require.Error(t, err)
		})
	}
	assert.Zero(t, adapter.Calls())
}

func TestLoopStream_TextFragmentsInOrder(t *testing.T) {
	adapter := newScriptedAdapter(step{
		fragments: []string{"Hel", "lo wo", "rld"},
		resp:      provider.NewResponse([]conversation.Item{conversation.Text("Hello world")}, "end_turn", provider.Usage{}),
	})
	loop := agent.NewLoop(agent.LoopConfig{})
	conv := conversation.New()

	events, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conv, Text: "hi",
	}))
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, want := range []string{"Hel", "lo wo", "rld"} {
		assert.Equal(t, agent.EventText, events[i].Kind)
		assert.Equal(t, want, events[i].Text)
	}
	assert.Equal(t, "Hello world", conversation.JoinText(conv.Turns()[1].Items))
}

func TestLoopStream_ToolActivityAndResult(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(
			conversation.Text("Let me check."),
			conversation.Call("call_1", "get_procedure_contact", map[string]any{"procedure": "picc_line"}),
		),
		step{
			fragments: []string{"Page ", "**Dr. X**."},
			resp:      provider.NewResponse([]conversation.Item{conversation.Text("Page **Dr. X**.")}, "end_turn", provider.Usage{}),
		},
	)
	contact := map[string]any{"contact": map[string]any{"name": "Dr. X"}}
	tools := newStubToolbox().on("get_procedure_contact", func(map[string]any) (map[string]any, error) {
		return contact, nil
	})
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools})

	events, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "VIR?",
	}))
	require.NoError(t, err)

	require.Len(t, events, 5)
	assert.Equal(t, agent.Event{Kind: agent.EventText, Text: "Let me check."}, events[0])
	assert.Equal(t, agent.EventToolActivity, events[1].Kind)
	assert.Equal(t, "\n[Searching: get_procedure_contact...]\n", events[1].Text)
	assert.Equal(t, agent.Event{
		Kind:     agent.EventToolResult,
		Tool:     "get_procedure_contact",
		Category: "contact",
		Result:   contact,
	}, events[2])
	assert.Equal(t, "Page ", events[3].Text)
	assert.Equal(t, "**Dr. X**.", events[4].Text)
}

func TestLoopStream_MaxTurnsMessage(t *testing.T) {
	adapter := newScriptedAdapter(toolStep(conversation.Call("c", "search_acr_criteria", nil)))
	loop := agent.NewLoop(agent.LoopConfig{Tools: newStubToolbox()})

	events, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "q", MaxTurns: 2,
	}))
	require.NoError(t, err)

	assert.Equal(t, 2, adapter.Calls())
	last := events[len(events)-1]
	assert.Equal(t, agent.Event{Kind: agent.EventText, Text: "\nMaximum conversation turns reached."}, last)
}

func TestLoopStream_AdapterError(t *testing.T) {
	adapter := newScriptedAdapter(step{
		fragments: []string{"partial"},
		err:       provider.UpstreamError("scripted", http.StatusTooManyRequests, errors.New("slow down")),
	})
	loop := agent.NewLoop(agent.LoopConfig{})

	events, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "q",
	}))
	require.Error(t, err)
	assert.True(t, radchaterr.IsRateLimited(err))
	require.Len(t, events, 1)
	assert.Equal(t, "partial", events[0].Text)
}

func TestLoopStream_MissingCompletionIsProtocolError(t *testing.T) {
	adapter := newScriptedAdapter(step{fragments: []string{"x"}})
	loop := agent.NewLoop(agent.LoopConfig{})

	_, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "q",
	}))
	require.Error(t, err)
	assert.True(t, radchaterr.HasCode(err, radchaterr.CodeProviderResponseInvalid))
}

func TestLoopStream_ConsumerStopHaltsLoop(t *testing.T) {
	adapter := newScriptedAdapter(
		toolStep(conversation.Text("thinking"), conversation.Call("c", "search_acr_criteria", nil)),
		textStep("never"),
	)
	tools := newStubToolbox()
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools})

	for ev, err := range loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "m", Conversation: conversation.New(), Text: "q",
	}) {
		require.NoError(t, err)
		assert.Equal(t, "thinking", ev.Text)
		break
	}

	assert.Equal(t, 1, adapter.Calls())
	assert.Empty(t, tools.Calls())
}

// TestLoopStream_MalformedArgumentsOverDeltaAdapter drives the loop through
// the real delta adapter against a scripted endpoint whose first answer
// carries truncated argument JSON.
func TestLoopStream_MalformedArgumentsOverDeltaAdapter(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk := func(delta, finish string) {
			_, _ = fmt.Fprintf(w, `data: {"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":%s,"finish_reason":%s}]}`+"\n\n", delta, finish)
		}
		if requests.Add(1) == 1 {
			chunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_procedure_contact","arguments":"{\"a\": "}}]}`, "null")
			chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"1"}}]}`, "null")
			chunk(`{}`, `"tool_calls"`)
		} else {
			chunk(`{"content":"No contact found."}`, "null")
			chunk(`{}`, `"stop"`)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	adapter, err := openai.New(openai.Config{APIKey: "test-key-not-real", BaseURL: srv.URL})
	require.NoError(t, err)
	tools := newStubToolbox()
	loop := agent.NewLoop(agent.LoopConfig{Tools: tools})

	events, err := collectEvents(t, loop.RunStream(context.Background(), agent.RunInput{
		Adapter: adapter, Model: "openai/gpt-4.1-mini", Conversation: conversation.New(), Text: "q",
	}))
	require.NoError(t, err)

	calls := tools.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_procedure_contact", calls[0].name)
	assert.Equal(t, map[string]any{}, calls[0].args)
	assert.Equal(t, "No contact found.", events[len(events)-1].Text)
	assert.Equal(t, int32(2), requests.Load())
}
