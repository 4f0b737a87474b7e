// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package agent

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/session"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// RateLimitMessage is shown to users when the model endpoint answers 429.
const RateLimitMessage = "Rate limit exceeded. Please wait a moment and try again."

// AdapterResolver picks the adapter that serves a model.
type AdapterResolver interface {
	Resolve(model string) (provider.Adapter, error)
}

// ServiceConfig holds dependencies for the Service.
type ServiceConfig struct {
	Resolver     AdapterResolver
	Sessions     *session.Store
	Tools        Toolbox
	SystemPrompt string
	DefaultModel string
	MaxTurns     int
	MaxTokens    int
	Hooks        *LoopHooks
}

// Service is the caller-facing chat API. Each call works on a private copy
// of the session history and commits it back only when the run succeeds.
type Service struct {
	resolver     AdapterResolver
	sessions     *session.Store
	loop         *Loop
	defaultModel string
	maxTurns     int
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Resolver == nil {
		return nil, radchaterr.New(radchaterr.CodeAgentLoopInvalidInput, "Resolver is required")
	}
	if cfg.Sessions == nil {
		return nil, radchaterr.New(radchaterr.CodeAgentLoopInvalidInput, "Sessions is required")
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	return &Service{
		resolver: cfg.Resolver,
		sessions: cfg.Sessions,
		loop: NewLoop(LoopConfig{
			Tools:        cfg.Tools,
			SystemPrompt: prompt,
			MaxTokens:    cfg.MaxTokens,
			Hooks:        cfg.Hooks,
		}),
		defaultModel: cfg.DefaultModel,
		maxTurns:     maxTurns,
	}, nil
}

// ChatRequest is one user message. An empty SessionID starts a new session;
// an empty Model selects the default; MaxTurns <= 0 selects the configured
// budget.
type ChatRequest struct {
	SessionID string
	Model     string
	Content   string
	MaxTurns  int
}

// ChatResponse is the final answer to a ChatRequest.
type ChatResponse struct {
	SessionID  string         `json:"session_id"`
	Model      string         `json:"model"`
	Content    string         `json:"content"`
	RoundTrips int            `json:"round_trips"`
	Exhausted  bool           `json:"max_turns_reached"`
	Usage      provider.Usage `json:"usage"`
}

// StreamEventType discriminates StreamEvent.
type StreamEventType string

const (
	StreamText         StreamEventType = "text"
	StreamToolActivity StreamEventType = "tool_activity"
	StreamToolResult   StreamEventType = "tool_result"
	StreamError        StreamEventType = "error"
	StreamDone         StreamEventType = "done"
)

// StreamEvent is one element of ChatStream. Every stream ends with exactly
// one StreamDone event unless the consumer stops early.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Category  string          `json:"category,omitempty"`
	Result    map[string]any  `json:"result,omitempty"`
	Err       error           `json:"-"`
}

// Chat answers one message and returns the final text.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req = s.normalize(req)

	binding, err := s.bind(req)
	if err != nil {
		return nil, err
	}

	conv := binding.Snapshot()
	res, err := s.loop.Run(ctx, RunInput{
		Adapter:      binding.Adapter,
		Model:        req.Model,
		Conversation: conv,
		Text:         req.Content,
		MaxTurns:     req.MaxTurns,
	})
	if err != nil {
		slog.Warn("chat failed", "session_id", req.SessionID, "model", req.Model, "error", err)
		return nil, radchaterr.With(err, radchaterr.FieldSessionID(req.SessionID))
	}
	binding.Commit(conv)

	return &ChatResponse{
		SessionID:  req.SessionID,
		Model:      req.Model,
		Content:    res.Text,
		RoundTrips: res.RoundTrips,
		Exhausted:  res.Exhausted,
		Usage:      res.Usage,
	}, nil
}

// ChatStream answers one message incrementally. Failures become a single
// StreamError event followed by StreamDone; the history is committed only
// when the run completes.
func (s *Service) ChatStream(ctx context.Context, req ChatRequest) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		req = s.normalize(req)
		if !s.stream(ctx, req, yield) {
			return
		}
		yield(StreamEvent{Type: StreamDone, SessionID: req.SessionID})
	}
}

// stream runs the loop and reports whether the consumer is still listening.
func (s *Service) stream(ctx context.Context, req ChatRequest, yield func(StreamEvent) bool) bool {
	fail := func(err error) bool {
		slog.Warn("chat stream failed", "session_id", req.SessionID, "model", req.Model, "error", err)
		return yield(StreamEvent{
			Type:      StreamError,
			SessionID: req.SessionID,
			Content:   DescribeError(err),
			Err:       err,
		})
	}

	binding, err := s.bind(req)
	if err != nil {
		return fail(err)
	}

	conv := binding.Snapshot()
	for ev, err := range s.loop.RunStream(ctx, RunInput{
		Adapter:      binding.Adapter,
		Model:        req.Model,
		Conversation: conv,
		Text:         req.Content,
		MaxTurns:     req.MaxTurns,
	}) {
		if err != nil {
			return fail(radchaterr.With(err, radchaterr.FieldSessionID(req.SessionID)))
		}
		out := StreamEvent{SessionID: req.SessionID, Content: ev.Text, Tool: ev.Tool}
		switch ev.Kind {
		case EventText:
			out.Type = StreamText
		case EventToolActivity:
			out.Type = StreamToolActivity
		case EventToolResult:
			out.Type = StreamToolResult
			out.Category = ev.Category
			out.Result = ev.Result
		}
		if !yield(out) {
			return false
		}
	}

	binding.Commit(conv)
	return true
}

// Reset forgets every model binding of a session and reports how many were
// removed.
func (s *Service) Reset(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	cleared := s.sessions.DeleteByPrefix(session.Key(sessionID, ""))
	slog.Info("session reset", "session_id", sessionID, "cleared", cleared)
	return cleared
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

func (s *Service) normalize(req ChatRequest) ChatRequest {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	if req.MaxTurns <= 0 {
		req.MaxTurns = s.maxTurns
	}
	return req
}

func (s *Service) bind(req ChatRequest) (*session.Binding, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, radchaterr.New(radchaterr.CodeAgentLoopInvalidInput, "message content is empty",
			radchaterr.FieldSessionID(req.SessionID))
	}
	return s.sessions.GetOrCreate(session.Key(req.SessionID, req.Model), func() (*session.Binding, error) {
		adapter, err := s.resolver.Resolve(req.Model)
		if err != nil {
			return nil, err
		}
		slog.Debug("session bound", "session_id", req.SessionID, "model", req.Model, "provider", adapter.Name())
		return session.NewBinding(req.Model, adapter), nil
	})
}

// DescribeError renders err for end users. Rate limiting gets a fixed
// phrase; everything else passes its message through.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	if radchaterr.IsRateLimited(err) {
		return RateLimitMessage
	}
	return err.Error()
}
