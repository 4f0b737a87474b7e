// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package toolset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	radchaterr "github.com/radchat/radchat/pkg/errors"
)

const maxResponseBytes = 4 << 20

// HTTPHandler executes tools on a remote lookup service. It posts
// {"name": ..., "arguments": {...}} to the endpoint and expects a JSON object
// back.
type HTTPHandler struct {
	endpoint string
	client   *http.Client
}

var _ Handler = (*HTTPHandler)(nil)

// NewHTTPHandler creates a handler for endpoint. A nil client selects
// http.DefaultClient.
func NewHTTPHandler(endpoint string, client *http.Client) (*HTTPHandler, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, radchaterr.New(radchaterr.CodeConfigValidateInvalidValue,
			"tool endpoint must be an http(s) URL", radchaterr.Field("endpoint", endpoint))
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{endpoint: endpoint, client: client}, nil
}

type toolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (h *HTTPHandler) Handle(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	body, err := json.Marshal(toolRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("encoding tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tool service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading tool response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, radchaterr.New(radchaterr.CodeAgentToolExecuteFailure,
			fmt.Sprintf("tool service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			radchaterr.FieldStatusCode(resp.StatusCode))
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeAgentToolExecuteFailure,
			"tool service returned a non-object response")
	}
	return result, nil
}
