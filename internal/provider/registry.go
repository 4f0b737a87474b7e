// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package provider

import (
	"context"
	"slices"
	"strings"
	"sync"

	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// Registry holds the configured adapters and picks one for a model id.
// Routes are matched by model id prefix in registration order; models that
// match no route go to the fallback adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	routes   []route
	fallback string
}

type route struct {
	prefix  string
	adapter string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its Name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// AddRoute sends every model id starting with prefix to the named adapter.
func (r *Registry) AddRoute(prefix, adapterName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{prefix: prefix, adapter: adapterName})
}

// SetFallback names the adapter for models no route matches.
func (r *Registry) SetFallback(adapterName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = adapterName
}

// Get retrieves an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(name)
}

func (r *Registry) getLocked(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, radchaterr.New(
			radchaterr.CodeProviderNotFound,
			"provider not configured: "+name,
			radchaterr.FieldProvider(name),
		)
	}
	return a, nil
}

// Resolve returns the adapter that serves model.
func (r *Registry) Resolve(model string) (Adapter, error) {
	if strings.TrimSpace(model) == "" {
		return nil, radchaterr.New(radchaterr.CodeProviderInvalidModelRef, "model id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if strings.HasPrefix(model, rt.prefix) {
			a, err := r.getLocked(rt.adapter)
			if err != nil {
				return nil, radchaterr.With(err, radchaterr.FieldModel(model))
			}
			return a, nil
		}
	}
	if r.fallback == "" {
		return nil, radchaterr.New(radchaterr.CodeProviderNotFound,
			"no provider serves model "+model, radchaterr.FieldModel(model))
	}
	a, err := r.getLocked(r.fallback)
	if err != nil {
		return nil, radchaterr.With(err, radchaterr.FieldModel(model))
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListModels concatenates every adapter's model list in adapter name order.
func (r *Registry) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var all []ModelInfo
	for _, name := range r.Names() {
		a, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		models, err := a.ListModels(ctx)
		if err != nil {
			return nil, radchaterr.With(err, radchaterr.FieldProvider(name))
		}
		all = append(all, models...)
	}
	return all, nil
}

// Health returns a snapshot per adapter that reports health.
func (r *Registry) Health() map[string]HealthMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]HealthMetrics, len(r.adapters))
	for name, a := range r.adapters {
		if hr, ok := a.(HealthReporter); ok {
			out[name] = hr.HealthMetrics()
		}
	}
	return out
}
