// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package server

import (
	"context"
	"iter"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	chat   ChatService
	models ModelService
	tools  ToolService
}

// NewServices creates a Services instance with validation.
func NewServices(chat ChatService, models ModelService, tools ToolService) (*Services, error) {
	if chat == nil {
		return nil, radchaterr.New(radchaterr.CodeServerConfigInvalid, "chat service is required")
	}
	if models == nil {
		return nil, radchaterr.New(radchaterr.CodeServerConfigInvalid, "model service is required")
	}
	if tools == nil {
		return nil, radchaterr.New(radchaterr.CodeServerConfigInvalid, "tool service is required")
	}
	return &Services{chat: chat, models: models, tools: tools}, nil
}

// Chat returns the chat service.
func (s *Services) Chat() ChatService {
	return s.chat
}

// Models returns the model catalog service.
func (s *Services) Models() ModelService {
	return s.models
}

// Tools returns the tool catalog service.
func (s *Services) Tools() ToolService {
	return s.tools
}

// ChatService answers chat messages. Implemented by *agent.Service.
type ChatService interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
	ChatStream(ctx context.Context, req agent.ChatRequest) iter.Seq[agent.StreamEvent]
	Reset(sessionID string) int
}

// ModelService lists models and reports adapter health. Implemented by
// *provider.Registry.
type ModelService interface {
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
	Health() map[string]provider.HealthMetrics
}

// ToolService describes the registered tools. Implemented by
// *toolset.Registry.
type ToolService interface {
	ByCategory() map[string][]string
}
