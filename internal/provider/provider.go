// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package provider defines the capability set shared by every model vendor
// adapter and the events an adapter emits while streaming.
package provider

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/radchat/radchat/internal/conversation"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// Kind selects the wire protocol family an adapter speaks.
type Kind string

const (
	// KindBlock delivers complete, self-describing content blocks per turn.
	KindBlock Kind = "block"
	// KindDelta delivers slot-indexed deltas that must be reassembled.
	KindDelta Kind = "delta"
)

// DefaultMaxTokens caps the completion length when a request does not set one.
const DefaultMaxTokens = 4096

// Adapter translates the canonical conversation to and from one vendor's
// wire format and performs the round trip.
type Adapter interface {
	Name() string
	Kind() Kind
	ListModels(ctx context.Context) ([]ModelInfo, error)
	// Send performs one blocking round trip.
	Send(ctx context.Context, req Request) (*Response, error)
	// SendStream performs one streaming round trip. The sequence ends with a
	// single EventTurnComplete on success, or yields one non-nil error and
	// stops. Stopping iteration early closes the underlying stream.
	SendStream(ctx context.Context, req Request) iter.Seq2[Event, error]
}

// HealthReporter is implemented by adapters that track upstream health.
type HealthReporter interface {
	HealthMetrics() HealthMetrics
}

// Request is one round trip's input.
type Request struct {
	Model        string
	SystemPrompt string
	Conversation *conversation.Conversation
	Tools        []ToolDefinition
	MaxTokens    int
}

// ToolDefinition describes a tool the model may call. Parameters is a JSON
// Schema object with "type", "properties" and "required" keys.
type ToolDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

// StopReason distinguishes a turn that wants tool results from a final one.
type StopReason string

const (
	StopToolUse StopReason = "tool_use"
	StopEndTurn StopReason = "end_turn"
)

// Response is the normalized result of one round trip.
type Response struct {
	Items      []conversation.Item
	StopReason StopReason
	// VendorStopReason is the stop or finish reason exactly as the vendor sent it.
	VendorStopReason string
	Usage            Usage
}

// NewResponse builds a Response and derives its stop reason: any tool call
// means StopToolUse, anything else is final.
func NewResponse(items []conversation.Item, vendorReason string, usage Usage) *Response {
	stop := StopEndTurn
	if len(conversation.ToolCalls(items)) > 0 {
		stop = StopToolUse
	}
	return &Response{Items: items, StopReason: stop, VendorStopReason: vendorReason, Usage: usage}
}

// Usage tracks token consumption for one round trip.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EventType defines the type of a streaming event.
type EventType string

const (
	EventTextDelta         EventType = "text_delta"
	EventToolCallStarted   EventType = "tool_call_started"
	EventToolCallArgsDelta EventType = "tool_call_args_delta"
	EventToolCallCompleted EventType = "tool_call_completed"
	EventTurnComplete      EventType = "turn_complete"
)

// Event is one element of a streaming round trip.
type Event struct {
	Type EventType
	// Text is set for EventTextDelta.
	Text string
	// Call carries ID and Name for the tool call events; Arguments is only
	// populated on EventToolCallCompleted.
	Call conversation.ToolCall
	// ArgumentsDelta is the raw JSON fragment of EventToolCallArgsDelta.
	ArgumentsDelta string
	// Response is set for EventTurnComplete.
	Response *Response
}

// ModelInfo describes a model an adapter can serve.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Publisher string `json:"provider"`
	Adapter   string `json:"adapter"`
}

// DecodeArguments parses accumulated tool-call argument text. Anything that
// is not a JSON object, including truncated or malformed text, decodes to an
// empty mapping.
func DecodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// UpstreamError reports a transport or HTTP failure talking to the model
// endpoint. status is the HTTP status when the vendor reported one, else 0.
func UpstreamError(providerName string, status int, err error) error {
	fields := []radchaterr.Attr{radchaterr.FieldProvider(providerName)}
	if status > 0 {
		fields = append(fields, radchaterr.FieldStatusCode(status))
	}
	return radchaterr.Wrap(err, radchaterr.CodeProviderUpstreamFailure, providerName+": request failed", fields...)
}

// ProtocolError reports a response whose shape violates the wire contract.
func ProtocolError(providerName, msg string) error {
	return radchaterr.New(radchaterr.CodeProviderResponseInvalid, providerName+": "+msg,
		radchaterr.FieldProvider(providerName))
}
