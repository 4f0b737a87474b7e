// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package openai implements the delta-accumulation adapter on the Chat
// Completions API. It targets any OpenAI-compatible endpoint and defaults to
// GitHub Models.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

const providerName = "openai"

// DefaultBaseURL is the GitHub Models inference endpoint.
const DefaultBaseURL = "https://models.inference.ai.azure.com"

// Config holds adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string // defaults to DefaultBaseURL
}

// Adapter implements provider.Adapter using the Chat Completions API.
type Adapter struct {
	client openaisdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.HealthReporter = (*Adapter)(nil)
)

// New creates a new adapter. Returns an error if the API key is missing.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, radchaterr.New(radchaterr.CodeProviderRequestInvalid,
			"openai: missing api_key in config", radchaterr.FieldProvider(providerName))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	client := openaisdk.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &Adapter{client: client, health: health}, nil
}

func (a *Adapter) Name() string        { return providerName }
func (a *Adapter) Kind() provider.Kind { return provider.KindDelta }

func (a *Adapter) HealthMetrics() provider.HealthMetrics {
	return a.health.HealthMetrics()
}

// knownModels lists the GitHub Models catalog entries that support function calling.
func knownModels() []provider.ModelInfo {
	m := func(id, name, publisher string) provider.ModelInfo {
		return provider.ModelInfo{ID: id, Name: name, Publisher: publisher, Adapter: providerName}
	}
	return []provider.ModelInfo{
		m("openai/gpt-4o", "GPT-4o", "OpenAI"),
		m("openai/gpt-4o-mini", "GPT-4o Mini", "OpenAI"),
		m("openai/gpt-4.1", "GPT-4.1", "OpenAI"),
		m("openai/gpt-4.1-mini", "GPT-4.1 Mini", "OpenAI"),
		m("openai/gpt-4.1-nano", "GPT-4.1 Nano", "OpenAI"),
		m("openai/o1", "o1", "OpenAI"),
		m("openai/o1-mini", "o1 Mini", "OpenAI"),
		m("openai/o1-preview", "o1 Preview", "OpenAI"),
		m("openai/o3-mini", "o3 Mini", "OpenAI"),
		m("mistral-ai/mistral-large-2411", "Mistral Large", "Mistral AI"),
		m("mistral-ai/mistral-small-2503", "Mistral Small", "Mistral AI"),
		m("cohere/cohere-command-r", "Command R", "Cohere"),
		m("cohere/cohere-command-r-plus", "Command R+", "Cohere"),
		m("ai21-labs/jamba-1.5-large", "Jamba 1.5 Large", "AI21 Labs"),
		m("ai21-labs/jamba-1.5-mini", "Jamba 1.5 Mini", "AI21 Labs"),
	}
}

func (a *Adapter) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

// Send performs one blocking Chat Completions round trip.
func (a *Adapter) Send(ctx context.Context, req provider.Request) (*provider.Response, error) {
	completion, err := a.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		a.health.RecordFailure()
		return nil, upstreamError(err)
	}
	a.health.RecordSuccess()

	return responseFromCompletion(completion)
}

// SendStream performs one streaming round trip. Tool-call ids, names and
// argument text arrive in fragments keyed by slot index and are reassembled
// by concatenation; arguments are decoded once the stream ends.
func (a *Adapter) SendStream(ctx context.Context, req provider.Request) iter.Seq2[provider.Event, error] {
	return func(yield func(provider.Event, error) bool) {
		params := buildParams(req)
		params.StreamOptions = openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		}

		stream := a.client.Chat.Completions.NewStreaming(ctx, params)
		defer func() { _ = stream.Close() }()

		type slotAccum struct {
			id   string
			name string
			args strings.Builder
		}
		slots := make(map[int64]*slotAccum)
		var (
			text         strings.Builder
			finishReason string
			usage        provider.Usage
			sawChoice    bool
		)

		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				usage = provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}

			for _, choice := range chunk.Choices {
				if choice.Index != 0 {
					continue
				}
				sawChoice = true
				delta := choice.Delta

				if delta.Content != "" {
					text.WriteString(delta.Content)
					if !yield(provider.Event{Type: provider.EventTextDelta, Text: delta.Content}, nil) {
						return
					}
				}

				for _, tc := range delta.ToolCalls {
					acc, seen := slots[tc.Index]
					if !seen {
						acc = &slotAccum{}
						slots[tc.Index] = acc
					}
					acc.id += tc.ID
					acc.name += tc.Function.Name

					if !seen {
						started := provider.Event{
							Type: provider.EventToolCallStarted,
							Call: conversation.ToolCall{ID: acc.id, Name: acc.name},
						}
						if !yield(started, nil) {
							return
						}
					}
					if tc.Function.Arguments != "" {
						acc.args.WriteString(tc.Function.Arguments)
						fragment := provider.Event{
							Type:           provider.EventToolCallArgsDelta,
							Call:           conversation.ToolCall{ID: acc.id, Name: acc.name},
							ArgumentsDelta: tc.Function.Arguments,
						}
						if !yield(fragment, nil) {
							return
						}
					}
				}

				if choice.FinishReason != "" {
					finishReason = choice.FinishReason
				}
			}
		}

		if err := stream.Err(); err != nil {
			a.health.RecordFailure()
			yield(provider.Event{}, upstreamError(err))
			return
		}
		a.health.RecordSuccess()
		if !sawChoice {
			yield(provider.Event{}, provider.ProtocolError(providerName, "stream carried no choices"))
			return
		}

		indexes := make([]int64, 0, len(slots))
		for idx := range slots {
			indexes = append(indexes, idx)
		}
		slices.Sort(indexes)

		var items []conversation.Item
		if text.Len() > 0 {
			items = append(items, conversation.Text(text.String()))
		}
		for _, idx := range indexes {
			acc := slots[idx]
			if acc.id == "" || acc.name == "" {
				yield(provider.Event{}, provider.ProtocolError(providerName, "streamed tool call without id or name"))
				return
			}
			args := decodeArguments(acc.name, acc.args.String())
			call := conversation.ToolCall{ID: acc.id, Name: acc.name, Arguments: args}
			if !yield(provider.Event{Type: provider.EventToolCallCompleted, Call: call}, nil) {
				return
			}
			items = append(items, conversation.Call(acc.id, acc.name, args))
		}

		yield(provider.Event{
			Type:     provider.EventTurnComplete,
			Response: provider.NewResponse(items, finishReason, usage),
		}, nil)
	}
}

// buildParams converts a provider.Request into ChatCompletionNewParams.
func buildParams(req provider.Request) openaisdk.ChatCompletionNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = provider.DefaultMaxTokens
	}

	var turns []conversation.Turn
	if req.Conversation != nil {
		turns = req.Conversation.Turns()
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:     shared.ChatModel(req.Model),
		Messages:  convertMessages(turns, req.SystemPrompt),
		MaxTokens: param.NewOpt(maxTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

// convertMessages flattens canonical turns into role-tagged messages. Each
// tool result becomes its own "tool" message; an assistant turn becomes one
// message holding its text and its tool calls. The system prompt is
// prepended when present.
func convertMessages(turns []conversation.Turn, systemPrompt string) []openaisdk.ChatCompletionMessageParamUnion {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			for _, it := range turn.Items {
				switch it.Kind {
				case conversation.KindToolResult:
					result = append(result, openaisdk.ToolMessage(
						conversation.EncodePayload(it.Result.Payload), it.Result.CallID))
				case conversation.KindText:
					result = append(result, openaisdk.UserMessage(it.Text))
				}
			}

		case conversation.RoleAssistant:
			msg := openaisdk.ChatCompletionAssistantMessageParam{}
			if text := conversation.JoinText(turn.Items); text != "" {
				msg.Content.OfString = param.NewOpt(text)
			}
			for _, call := range conversation.ToolCalls(turn.Items) {
				msg.ToolCalls = append(msg.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: encodeArguments(call.Arguments),
					},
				})
			}
			result = append(result, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		}
	}

	return result
}

// convertTools reshapes tool definitions into the function-call envelope.
func convertTools(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return result
}

// responseFromCompletion converts the first choice of a completion.
func responseFromCompletion(completion *openaisdk.ChatCompletion) (*provider.Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, provider.ProtocolError(providerName, "response has no choices")
	}

	choice := completion.Choices[0]
	var items []conversation.Item
	if choice.Message.Content != "" {
		items = append(items, conversation.Text(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.ID == "" || tc.Function.Name == "" {
			return nil, provider.ProtocolError(providerName, "tool call without id or name")
		}
		items = append(items, conversation.Call(tc.ID, tc.Function.Name,
			decodeArguments(tc.Function.Name, tc.Function.Arguments)))
	}

	usage := provider.Usage{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}
	return provider.NewResponse(items, choice.FinishReason, usage), nil
}

func decodeArguments(tool, raw string) map[string]any {
	args := provider.DecodeArguments(raw)
	if len(args) == 0 && strings.TrimSpace(raw) != "" && strings.TrimSpace(raw) != "{}" {
		slog.Warn("openai: discarding unparseable tool arguments", "tool", tool)
	}
	return args
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func upstreamError(err error) error {
	var apiErr *openaisdk.Error
	status := 0
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return provider.UpstreamError(providerName, status, err)
}
