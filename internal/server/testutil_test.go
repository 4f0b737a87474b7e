// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package server_test

import (
	"context"
	"iter"
	"sync"
	"testing"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/server"
	"github.com/stretchr/testify/require"
)

// stubChat answers with canned results and records requests.
type stubChat struct {
	mu       sync.Mutex
	requests []agent.ChatRequest
	resets   []string

	resp    *agent.ChatResponse
	err     error
	events  []agent.StreamEvent
	cleared int
}

var _ server.ChatService = (*stubChat)(nil)

func (s *stubChat) Chat(_ context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubChat) ChatStream(_ context.Context, req agent.ChatRequest) iter.Seq[agent.StreamEvent] {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return func(yield func(agent.StreamEvent) bool) {
		for _, ev := range s.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (s *stubChat) Reset(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, sessionID)
	return s.cleared
}

func (s *stubChat) DefaultModel() string { return "openai/gpt-4.1-mini" }

func (s *stubChat) Requests() []agent.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.ChatRequest(nil), s.requests...)
}

type stubModels struct {
	models []provider.ModelInfo
	health map[string]provider.HealthMetrics
	err    error
}

func (s *stubModels) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return s.models, s.err
}

func (s *stubModels) Health() map[string]provider.HealthMetrics {
	if s.health == nil {
		return map[string]provider.HealthMetrics{}
	}
	return s.health
}

type stubTools map[string][]string

func (s stubTools) ByCategory() map[string][]string { return s }

func newTestServer(t *testing.T, chat *stubChat, models *stubModels) *server.Server {
	t.Helper()
	if models == nil {
		models = &stubModels{}
	}
	svc, err := server.NewServices(chat, models, stubTools{
		"contact":  {"search_phone_directory", "get_procedure_contact"},
		"criteria": {"search_acr_criteria"},
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	require.NoError(t, err)
	return srv
}
