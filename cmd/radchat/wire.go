// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package main

import (
	"log/slog"
	"net/http"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/config"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
	anthropicprov "github.com/radchat/radchat/internal/provider/anthropic"
	openaiprov "github.com/radchat/radchat/internal/provider/openai"
	"github.com/radchat/radchat/internal/server"
	"github.com/radchat/radchat/internal/session"
	"github.com/radchat/radchat/internal/toolset"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// claudePrefix routes model ids to the Anthropic adapter; every other model
// goes to the OpenAI-compatible endpoint.
const claudePrefix = "claude-"

// App holds all wired subsystems.
type App struct {
	Config    *config.Config
	Providers *provider.Registry
	Tools     *toolset.Registry
	Sessions  *session.Store
	Chat      *agent.Service
}

// Wire creates all subsystems and wires them together.
func Wire(cfg *config.Config) (*App, error) {
	providers := provider.NewRegistry()
	registerProviders(cfg, providers)
	providers.AddRoute(claudePrefix, "anthropic")
	providers.SetFallback("openai")

	tools, err := wireTools(cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(cfg.Sessions.MaxSize, cfg.Sessions.TTL)
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeCLISetupFailure, "creating session store")
	}

	chat, err := agent.NewService(agent.ServiceConfig{
		Resolver:     providers,
		Sessions:     sessions,
		Tools:        tools,
		SystemPrompt: cfg.Agent.SystemPrompt,
		DefaultModel: cfg.Models.Default,
		MaxTurns:     cfg.Agent.MaxTurns,
		MaxTokens:    cfg.Agent.MaxTokens,
		Hooks: &agent.LoopHooks{
			OnRoundTrip: func(turn int) { slog.Debug("model round trip", "turn", turn) },
			OnToolCall: func(call conversation.ToolCall) {
				slog.Debug("tool requested", "tool", call.Name, "call_id", call.ID)
			},
		},
	})
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeCLISetupFailure, "creating chat service")
	}

	return &App{
		Config:    cfg,
		Providers: providers,
		Tools:     tools,
		Sessions:  sessions,
		Chat:      chat,
	}, nil
}

// NewServer builds the HTTP server for the app.
func (a *App) NewServer() (*server.Server, error) {
	svc, err := server.NewServices(a.Chat, a.Providers, a.Tools)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		ListenAddr:  a.Config.Server.Listen,
		CORSOrigins: a.Config.Server.CORSOrigins,
	}, svc)
}

// registerProviders registers every adapter that has credentials. A
// missing key is not fatal; requests for its models fail with not found.
func registerProviders(cfg *config.Config, reg *provider.Registry) {
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		a, err := openaiprov.New(openaiprov.Config{APIKey: key, BaseURL: cfg.Providers.OpenAI.Endpoint})
		if err != nil {
			slog.Warn("failed to create provider", "provider", "openai", "error", err)
		} else {
			reg.Register(a)
			slog.Info("registered provider", "provider", a.Name())
		}
	} else {
		slog.Warn("skipping provider with empty API key", "provider", "openai")
	}

	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		a, err := anthropicprov.New(anthropicprov.Config{APIKey: key, BaseURL: cfg.Providers.Anthropic.Endpoint})
		if err != nil {
			slog.Warn("failed to create provider", "provider", "anthropic", "error", err)
		} else {
			reg.Register(a)
			slog.Info("registered provider", "provider", a.Name())
		}
	} else {
		slog.Debug("skipping provider with empty API key", "provider", "anthropic")
	}
}

// wireTools registers each catalog tool whose category has an endpoint.
// Tools without a backing service are not advertised to the model.
func wireTools(cfg *config.Config) (*toolset.Registry, error) {
	catalog, err := toolset.LoadCatalog(cfg.Tools.Catalog)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	handlers := make(map[string]toolset.Handler, len(cfg.Tools.Endpoints))
	for category, endpoint := range cfg.Tools.Endpoints {
		h, err := toolset.NewHTTPHandler(endpoint, client)
		if err != nil {
			return nil, radchaterr.With(err, radchaterr.Field("category", category))
		}
		handlers[category] = h
	}

	reg := toolset.NewRegistry(cfg.Tools.Timeout)
	for _, tool := range catalog.Tools {
		h, ok := handlers[tool.Category]
		if !ok {
			slog.Debug("tool has no endpoint, not registered", "tool", tool.Name, "category", tool.Category)
			continue
		}
		reg.Register(tool, h)
	}
	slog.Info("tools registered", "count", len(reg.Names()))
	return reg, nil
}
