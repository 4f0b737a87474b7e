// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package conversation holds the provider-neutral transcript that the agent
// loop mutates and the provider adapters translate to their wire formats.
package conversation

import (
	"bytes"
	"encoding/json"
	"strings"

	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// Role identifies who contributed a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind discriminates the variants of Item.
type Kind string

const (
	KindText       Kind = "text"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
)

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult answers the ToolCall whose ID equals CallID.
type ToolResult struct {
	CallID  string
	Payload any
}

// Item is one content element inside a turn. Only the field matching Kind
// is meaningful. Items are never mutated after they are appended.
type Item struct {
	Kind   Kind
	Text   string
	Call   ToolCall
	Result ToolResult
}

func Text(s string) Item {
	return Item{Kind: KindText, Text: s}
}

// Call builds a tool-call item. A nil arguments map is normalized to an
// empty one so adapters always serialize an object.
func Call(id, name string, args map[string]any) Item {
	if args == nil {
		args = map[string]any{}
	}
	return Item{Kind: KindToolCall, Call: ToolCall{ID: id, Name: name, Arguments: args}}
}

func Result(callID string, payload any) Item {
	return Item{Kind: KindToolResult, Result: ToolResult{CallID: callID, Payload: payload}}
}

// Turn is one role-tagged contribution holding one or more items.
type Turn struct {
	Role  Role
	Items []Item
}

// Conversation is an ordered sequence of turns alternating between user and
// assistant. A single user turn may batch user text and tool results.
//
// A Conversation is not safe for concurrent use; the agent loop owns it for
// the duration of one request.
type Conversation struct {
	turns []Turn
}

// New returns an empty conversation.
func New() *Conversation {
	return &Conversation{}
}

// Turns returns a copy of the turn list. Items are shared since they are
// immutable.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = Turn{Role: t.Role, Items: append([]Item(nil), t.Items...)}
	}
	return out
}

// Len reports the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Clone returns an independent copy that can be appended to without
// affecting c.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{turns: c.Turns()}
}

// AppendUserText adds user text. When the last turn already belongs to the
// user (for example it carries tool results from an exhausted loop) the text
// is batched into that turn.
func (c *Conversation) AppendUserText(text string) error {
	last := c.last()
	if last == nil || last.Role == RoleAssistant {
		if last != nil && len(ToolCalls(last.Items)) > 0 {
			return radchaterr.New(radchaterr.CodeConversationInvalid,
				"user text cannot follow unanswered tool calls")
		}
		c.turns = append(c.turns, Turn{Role: RoleUser, Items: []Item{Text(text)}})
		return nil
	}
	last.Items = append(last.Items, Text(text))
	return nil
}

// AppendAssistant adds an assistant turn. It must follow a user turn.
// An empty item list appends nothing.
func (c *Conversation) AppendAssistant(items []Item) error {
	last := c.last()
	if last == nil || last.Role != RoleUser {
		return radchaterr.New(radchaterr.CodeConversationInvalid,
			"assistant content must follow a user turn")
	}
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		if it.Kind == KindToolResult {
			return radchaterr.New(radchaterr.CodeConversationInvalid,
				"assistant turn cannot carry tool results")
		}
	}
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Items: append([]Item(nil), items...)})
	return nil
}

// AppendToolResults adds one user turn batching results for the tool calls
// of the preceding assistant turn. Every result must name a call from that
// turn and no call may be answered twice.
func (c *Conversation) AppendToolResults(items []Item) error {
	last := c.last()
	if last == nil || last.Role != RoleAssistant {
		return radchaterr.New(radchaterr.CodeConversationInvalid,
			"tool results must follow an assistant turn")
	}

	pending := make(map[string]bool)
	for _, call := range ToolCalls(last.Items) {
		pending[call.ID] = true
	}
	for _, it := range items {
		if it.Kind != KindToolResult {
			return radchaterr.New(radchaterr.CodeConversationInvalid,
				"tool result turn may only carry tool results")
		}
		if !pending[it.Result.CallID] {
			return radchaterr.New(radchaterr.CodeConversationInvalid,
				"tool result does not answer a pending call",
				radchaterr.Field("call_id", it.Result.CallID))
		}
		delete(pending, it.Result.CallID)
	}

	c.turns = append(c.turns, Turn{Role: RoleUser, Items: append([]Item(nil), items...)})
	return nil
}

// Stable reports whether every tool call has been answered, which is the
// precondition for sending the conversation to a model.
func (c *Conversation) Stable() bool {
	for i, t := range c.turns {
		if t.Role != RoleAssistant {
			continue
		}
		calls := ToolCalls(t.Items)
		if len(calls) == 0 {
			continue
		}
		if i+1 >= len(c.turns) {
			return false
		}
		answered := make(map[string]bool)
		for _, it := range c.turns[i+1].Items {
			if it.Kind == KindToolResult {
				answered[it.Result.CallID] = true
			}
		}
		for _, call := range calls {
			if !answered[call.ID] {
				return false
			}
		}
	}
	return true
}

func (c *Conversation) last() *Turn {
	if len(c.turns) == 0 {
		return nil
	}
	return &c.turns[len(c.turns)-1]
}

// ToolCalls extracts the tool calls from items in order.
func ToolCalls(items []Item) []ToolCall {
	var calls []ToolCall
	for _, it := range items {
		if it.Kind == KindToolCall {
			calls = append(calls, it.Call)
		}
	}
	return calls
}

// JoinText concatenates every text item with no separator.
func JoinText(items []Item) string {
	var b strings.Builder
	for _, it := range items {
		if it.Kind == KindText {
			b.WriteString(it.Text)
		}
	}
	return b.String()
}

// EncodePayload renders a tool result payload the way it is placed in the
// transcript: JSON indented by two spaces.
func EncodePayload(payload any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fallback, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(fallback)
	}
	return strings.TrimRight(buf.String(), "\n")
}
