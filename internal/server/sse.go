// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/radchat/radchat/internal/agent"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

// DoneSentinel is the data of the final SSE event.
const DoneSentinel = "[DONE]"

func (s *Server) registerSSERoute() {
	s.router.Post("/api/v1/chat/stream", s.handleChatStream)

	// The streaming handler writes to the raw http.ResponseWriter, so the
	// operation is added to the OpenAPI document by hand.
	minContentLen := 1
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "chat-stream",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat/stream",
		Summary:     "Stream a chat response via SSE",
		Description: "Send a message and receive text, tool_activity, tool_result and error events, terminated by a done event carrying [DONE]. Without Accept: text/event-stream the events are returned as one JSON array.",
		Tags:        []string{"chat"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"content"},
						Properties: map[string]*huma.Schema{
							"content":    {Type: "string", MinLength: &minContentLen, Description: "Message content"},
							"session_id": {Type: "string", Description: "Session to continue"},
							"model":      {Type: "string", Description: "Model id"},
							"max_turns":  {Type: "integer", Description: "Tool round trip budget"},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Streaming response (SSE or JSON depending on Accept header)",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "Server-sent event stream"},
					},
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"events": {Type: "array", Items: &huma.Schema{Type: "object"}},
							},
						},
					},
				},
			},
			"400": {Description: "Malformed request body"},
			"422": {Description: "Validation error (missing content)"},
		},
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	body, err := decodeChatBody(r)
	if err != nil {
		status := radchaterr.HTTPStatus(err)
		if _, ok := radchaterr.FieldsOf(err)["field"]; ok {
			status = http.StatusUnprocessableEntity
		}
		slog.Debug("rejecting stream request", "status", status, "error", err)
		writeJSONError(w, status, err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.writeSSE(w, r, body.request())
		return
	}
	s.writeEventList(w, r, body.request())
}

func (s *Server) writeSSE(w http.ResponseWriter, r *http.Request, req agent.ChatRequest) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// httptest.ResponseRecorder does not flush; events are still written.
	flusher, _ := w.(http.Flusher)

	for ev := range s.services.Chat().ChatStream(r.Context(), req) {
		data, err := encodeEvent(ev)
		if err != nil {
			slog.Error("encoding stream event", "type", ev.Type, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) writeEventList(w http.ResponseWriter, r *http.Request, req agent.ChatRequest) {
	events := []agent.StreamEvent{}
	for ev := range s.services.Chat().ChatStream(r.Context(), req) {
		events = append(events, ev)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Events []agent.StreamEvent `json:"events"`
	}{Events: events}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encoding stream events", "error", err)
	}
}

// encodeEvent renders the data line of one SSE event. The done event
// carries the sentinel; the others are the event as one JSON line.
func encodeEvent(ev agent.StreamEvent) (string, error) {
	if ev.Type == agent.StreamDone {
		return DoneSentinel, nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeChatBody reads the stream request. A malformed body and a body
// without content both fail with server.request.invalid; the latter names
// the offending field.
func decodeChatBody(r *http.Request) (ChatBody, error) {
	var body ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, radchaterr.New(radchaterr.CodeServerRequestInvalid, "invalid request body")
	}
	if strings.TrimSpace(body.Content) == "" {
		return body, radchaterr.New(radchaterr.CodeServerRequestInvalid, "content is required",
			radchaterr.Field("field", "content"))
	}
	return body, nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
