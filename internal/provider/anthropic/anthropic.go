// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package anthropic implements the block-protocol adapter on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

const providerName = "anthropic"

// Config holds Anthropic adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Adapter implements provider.Adapter using the Anthropic Messages API.
type Adapter struct {
	client anthropicsdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.HealthReporter = (*Adapter)(nil)
)

// New creates a new Anthropic adapter. Returns an error if the API key is missing.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, radchaterr.New(radchaterr.CodeProviderRequestInvalid,
			"anthropic: missing api_key in config", radchaterr.FieldProvider(providerName))
	}

	// Retry policy belongs to the caller.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client: anthropicsdk.NewClient(opts...),
		health: health,
	}, nil
}

func (a *Adapter) Name() string        { return providerName }
func (a *Adapter) Kind() provider.Kind { return provider.KindBlock }

func (a *Adapter) HealthMetrics() provider.HealthMetrics {
	return a.health.HealthMetrics()
}

func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Publisher: "Anthropic", Adapter: providerName},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Publisher: "Anthropic", Adapter: providerName},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Publisher: "Anthropic", Adapter: providerName},
	}
}

func (a *Adapter) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

// Send performs one blocking Messages round trip.
func (a *Adapter) Send(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params := buildParams(req)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		a.health.RecordFailure()
		return nil, upstreamError(err)
	}
	a.health.RecordSuccess()

	return responseFromMessage(msg)
}

// SendStream performs one streaming Messages round trip. Text arrives as
// deltas; tool-use input JSON is accumulated per content block index and
// decoded when the block stops.
func (a *Adapter) SendStream(ctx context.Context, req provider.Request) iter.Seq2[provider.Event, error] {
	return func(yield func(provider.Event, error) bool) {
		stream := a.client.Messages.NewStreaming(ctx, buildParams(req))
		defer func() { _ = stream.Close() }()

		type blockAccum struct {
			kind        conversation.Kind
			text        string
			id          string
			name        string
			partialJSON string
			args        map[string]any
		}
		blocks := make(map[int64]*blockAccum)
		var (
			stopReason string
			usage      provider.Usage
			sawStart   bool
		)

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "message_start":
				sawStart = true
				usage.InputTokens = int(event.Message.Usage.InputTokens)

			case "content_block_start":
				cb := event.ContentBlock
				switch cb.Type {
				case "text":
					blocks[event.Index] = &blockAccum{kind: conversation.KindText, text: cb.Text}
					if cb.Text != "" && !yield(provider.Event{Type: provider.EventTextDelta, Text: cb.Text}, nil) {
						return
					}
				case "tool_use":
					blocks[event.Index] = &blockAccum{kind: conversation.KindToolCall, id: cb.ID, name: cb.Name}
					started := provider.Event{
						Type: provider.EventToolCallStarted,
						Call: conversation.ToolCall{ID: cb.ID, Name: cb.Name},
					}
					if !yield(started, nil) {
						return
					}
				}

			case "content_block_delta":
				acc, ok := blocks[event.Index]
				if !ok {
					continue
				}
				switch event.Delta.Type {
				case "text_delta":
					acc.text += event.Delta.Text
					if !yield(provider.Event{Type: provider.EventTextDelta, Text: event.Delta.Text}, nil) {
						return
					}
				case "input_json_delta":
					acc.partialJSON += event.Delta.PartialJSON
					delta := provider.Event{
						Type:           provider.EventToolCallArgsDelta,
						Call:           conversation.ToolCall{ID: acc.id, Name: acc.name},
						ArgumentsDelta: event.Delta.PartialJSON,
					}
					if !yield(delta, nil) {
						return
					}
				}

			case "content_block_stop":
				acc, ok := blocks[event.Index]
				if !ok || acc.kind != conversation.KindToolCall {
					continue
				}
				acc.args = provider.DecodeArguments(acc.partialJSON)
				if raw := strings.TrimSpace(acc.partialJSON); raw != "" && raw != "{}" && len(acc.args) == 0 {
					slog.Warn("anthropic: discarding unparseable tool arguments",
						"tool", acc.name, "call_id", acc.id)
				}
				done := provider.Event{
					Type: provider.EventToolCallCompleted,
					Call: conversation.ToolCall{ID: acc.id, Name: acc.name, Arguments: acc.args},
				}
				if !yield(done, nil) {
					return
				}

			case "message_delta":
				if event.Delta.StopReason != "" {
					stopReason = string(event.Delta.StopReason)
				}
				usage.OutputTokens = int(event.Usage.OutputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			a.health.RecordFailure()
			yield(provider.Event{}, upstreamError(err))
			return
		}
		a.health.RecordSuccess()
		if !sawStart {
			yield(provider.Event{}, provider.ProtocolError(providerName, "stream carried no message_start"))
			return
		}

		indexes := make([]int64, 0, len(blocks))
		for idx := range blocks {
			indexes = append(indexes, idx)
		}
		slices.Sort(indexes)

		items := make([]conversation.Item, 0, len(indexes))
		for _, idx := range indexes {
			acc := blocks[idx]
			switch acc.kind {
			case conversation.KindText:
				if acc.text != "" {
					items = append(items, conversation.Text(acc.text))
				}
			case conversation.KindToolCall:
				if acc.id == "" || acc.name == "" {
					yield(provider.Event{}, provider.ProtocolError(providerName, "tool_use block without id or name"))
					return
				}
				if acc.args == nil {
					acc.args = provider.DecodeArguments(acc.partialJSON)
				}
				items = append(items, conversation.Call(acc.id, acc.name, acc.args))
			}
		}

		yield(provider.Event{
			Type:     provider.EventTurnComplete,
			Response: provider.NewResponse(items, stopReason, usage),
		}, nil)
	}
}

// buildParams converts a provider.Request into Anthropic SDK MessageNewParams.
func buildParams(req provider.Request) anthropicsdk.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = provider.DefaultMaxTokens
	}

	var turns []conversation.Turn
	if req.Conversation != nil {
		turns = req.Conversation.Turns()
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  convertMessages(turns),
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params
}

// convertMessages maps canonical turns one-to-one onto Anthropic messages.
// Tool results travel as tool_result blocks inside a user message.
func convertMessages(turns []conversation.Turn) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, 0, len(turns))

	for _, turn := range turns {
		blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(turn.Items))
		for _, it := range turn.Items {
			switch it.Kind {
			case conversation.KindText:
				if it.Text != "" {
					blocks = append(blocks, anthropicsdk.NewTextBlock(it.Text))
				}
			case conversation.KindToolCall:
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(it.Call.ID, it.Call.Arguments, it.Call.Name))
			case conversation.KindToolResult:
				blocks = append(blocks, anthropicsdk.NewToolResultBlock(
					it.Result.CallID, conversation.EncodePayload(it.Result.Payload), false))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch turn.Role {
		case conversation.RoleUser:
			result = append(result, anthropicsdk.NewUserMessage(blocks...))
		case conversation.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(blocks...))
		}
	}

	return result
}

// convertTools transforms tool definitions into Anthropic SDK tool params.
func convertTools(tools []provider.ToolDefinition) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: extractSchema(t.Parameters),
			},
		})
	}
	return result
}

// extractSchema maps a JSON Schema object onto ToolInputSchemaParam, which
// carries properties and required as separate fields.
func extractSchema(raw map[string]any) anthropicsdk.ToolInputSchemaParam {
	schema := anthropicsdk.ToolInputSchemaParam{}
	if props, ok := raw["properties"]; ok {
		schema.Properties = props
	}
	switch req := raw["required"].(type) {
	case []string:
		schema.Required = append([]string(nil), req...)
	case []any:
		strs := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		schema.Required = strs
	}
	return schema
}

// responseFromMessage converts a complete Message into the canonical shape.
func responseFromMessage(msg *anthropicsdk.Message) (*provider.Response, error) {
	if msg == nil {
		return nil, provider.ProtocolError(providerName, "empty response")
	}

	items := make([]conversation.Item, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				items = append(items, conversation.Text(block.Text))
			}
		case "tool_use":
			if block.ID == "" || block.Name == "" {
				return nil, provider.ProtocolError(providerName, "tool_use block without id or name")
			}
			items = append(items, conversation.Call(block.ID, block.Name, provider.DecodeArguments(string(block.Input))))
		}
	}

	usage := provider.Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return provider.NewResponse(items, string(msg.StopReason), usage), nil
}

func upstreamError(err error) error {
	var apiErr *anthropicsdk.Error
	status := 0
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return provider.UpstreamError(providerName, status, err)
}
