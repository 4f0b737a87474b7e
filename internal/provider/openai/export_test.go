// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package openai

import (
	openaisdk "github.com/openai/openai-go"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
)

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(turns []conversation.Turn, systemPrompt string) []openaisdk.ChatCompletionMessageParamUnion {
	return convertMessages(turns, systemPrompt)
}

// ConvertTools exposes convertTools for white-box testing.
var ConvertTools = func(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolParam {
	return convertTools(tools)
}
