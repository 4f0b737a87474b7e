// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Command openapi-gen writes the OpenAPI document of the RadChat HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/server"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds a server over no-op services and returns the document
// huma derives from the route types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(nopChat{}, nopModels{}, nopTools{})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, radchaterr.Errorf(radchaterr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// Handlers are never invoked during spec generation.

type nopChat struct{}

func (nopChat) Chat(context.Context, agent.ChatRequest) (*agent.ChatResponse, error) {
	return nil, nil
}

func (nopChat) ChatStream(context.Context, agent.ChatRequest) iter.Seq[agent.StreamEvent] {
	return func(func(agent.StreamEvent) bool) {}
}

func (nopChat) Reset(string) int { return 0 }

type nopModels struct{}

func (nopModels) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }

func (nopModels) Health() map[string]provider.HealthMetrics { return nil }

type nopTools struct{}

func (nopTools) ByCategory() map[string][]string { return nil }
