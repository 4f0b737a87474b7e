// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package provider_test

import (
	"context"
	"iter"

	"github.com/radchat/radchat/internal/provider"
)

// stubAdapter is a minimal provider.Adapter for registry tests.
type stubAdapter struct {
	name   string
	kind   provider.Kind
	models []provider.ModelInfo
	health *provider.HealthTracker
}

func newStubAdapter(name string, kind provider.Kind, modelIDs ...string) *stubAdapter {
	s := &stubAdapter{name: name, kind: kind}
	for _, id := range modelIDs {
		s.models = append(s.models, provider.ModelInfo{ID: id, Name: id, Adapter: name})
	}
	return s
}

func (s *stubAdapter) Name() string        { return s.name }
func (s *stubAdapter) Kind() provider.Kind { return s.kind }

func (s *stubAdapter) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return s.models, nil
}

func (s *stubAdapter) Send(context.Context, provider.Request) (*provider.Response, error) {
	return provider.NewResponse(nil, "stop", provider.Usage{}), nil
}

func (s *stubAdapter) SendStream(context.Context, provider.Request) iter.Seq2[provider.Event, error] {
	return func(yield func(provider.Event, error) bool) {
		yield(provider.Event{Type: provider.EventTurnComplete, Response: provider.NewResponse(nil, "stop", provider.Usage{})}, nil)
	}
}

// healthyStub also reports health.
type healthyStub struct {
	*stubAdapter
}

func (h healthyStub) HealthMetrics() provider.HealthMetrics {
	return h.health.HealthMetrics()
}
