// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package anthropic

import (
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
)

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(turns []conversation.Turn) []anthropicsdk.MessageParam {
	return convertMessages(turns)
}

// ConvertTools exposes convertTools for white-box testing.
var ConvertTools = func(tools []provider.ToolDefinition) []anthropicsdk.ToolUnionParam {
	return convertTools(tools)
}
