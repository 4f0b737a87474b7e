// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/api/v1/models",
		Summary:     "List available models",
		Tags:        []string{"models"},
	}, s.handleListModels)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/api/v1/tools",
		Summary:     "List tools grouped by category",
		Tags:        []string{"tools"},
	}, s.handleListTools)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Send a message to the assistant",
		Tags:        []string{"chat"},
	}, s.handleSendMessage)

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-session",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Clear a session's history for every model",
		Tags:        []string{"sessions"},
	}, s.handleResetSession)
}

// --- Request/Response types for huma ---

type listModelsOutput struct {
	Body struct {
		Models  []provider.ModelInfo `json:"models"`
		Default string               `json:"default,omitempty" doc:"Model used when a request names none"`
	}
}

type listToolsOutput struct {
	Body struct {
		Categories map[string][]string `json:"categories" doc:"Tool names keyed by category"`
	}
}

// ChatBody is the request body shared by the chat and chat stream endpoints.
type ChatBody struct {
	Content   string `json:"content" minLength:"1" doc:"Message content"`
	SessionID string `json:"session_id,omitempty" doc:"Session to continue; a new one is started when empty"`
	Model     string `json:"model,omitempty" doc:"Model id; the configured default when empty"`
	MaxTurns  int    `json:"max_turns,omitempty" minimum:"0" doc:"Tool round trip budget; the configured default when 0"`
}

func (b ChatBody) request() agent.ChatRequest {
	return agent.ChatRequest{
		SessionID: b.SessionID,
		Model:     b.Model,
		Content:   b.Content,
		MaxTurns:  b.MaxTurns,
	}
}

type sendMessageInput struct {
	Body ChatBody
}
type sendMessageOutput struct {
	Body agent.ChatResponse
}

type resetSessionInput struct {
	ID string `path:"id" doc:"Session identifier"`
}
type resetSessionOutput struct {
	Body struct {
		Status    string `json:"status" example:"cleared"`
		SessionID string `json:"session_id"`
		Cleared   int    `json:"cleared" doc:"Number of model bindings removed"`
	}
}

// DefaultModeler is implemented by chat services that expose their default
// model.
type DefaultModeler interface {
	DefaultModel() string
}

// --- Handlers ---

func (s *Server) handleListModels(ctx context.Context, _ *struct{}) (*listModelsOutput, error) {
	models, err := s.services.Models().ListModels(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	out := &listModelsOutput{}
	out.Body.Models = models
	if dm, ok := s.services.Chat().(DefaultModeler); ok {
		out.Body.Default = dm.DefaultModel()
	}
	return out, nil
}

func (s *Server) handleListTools(_ context.Context, _ *struct{}) (*listToolsOutput, error) {
	out := &listToolsOutput{}
	out.Body.Categories = s.services.Tools().ByCategory()
	return out, nil
}

func (s *Server) handleSendMessage(ctx context.Context, input *sendMessageInput) (*sendMessageOutput, error) {
	resp, err := s.services.Chat().Chat(ctx, input.Body.request())
	if err != nil {
		return nil, toHumaError(err)
	}
	return &sendMessageOutput{Body: *resp}, nil
}

func (s *Server) handleResetSession(_ context.Context, input *resetSessionInput) (*resetSessionOutput, error) {
	out := &resetSessionOutput{}
	out.Body.Status = "cleared"
	out.Body.SessionID = input.ID
	out.Body.Cleared = s.services.Chat().Reset(input.ID)
	return out, nil
}

// toHumaError maps a coded error onto an HTTP status. Rate limiting is
// reported with a fixed phrase.
func toHumaError(err error) huma.StatusError {
	status := radchaterr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", radchaterr.CodeOf(err), "error", err)
	}
	return huma.NewError(status, agent.DescribeError(err))
}
