// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package session

import (
	"sync"

	"github.com/radchat/radchat/internal/conversation"
	"github.com/radchat/radchat/internal/provider"
)

// Binding pairs an adapter with the conversation history for one session
// and model.
type Binding struct {
	Model   string
	Adapter provider.Adapter

	mu   sync.Mutex
	conv *conversation.Conversation
}

// NewBinding returns a binding with an empty conversation.
func NewBinding(model string, adapter provider.Adapter) *Binding {
	return &Binding{Model: model, Adapter: adapter, conv: conversation.New()}
}

// Snapshot returns a copy of the history that the caller owns exclusively.
func (b *Binding) Snapshot() *conversation.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conv.Clone()
}

// Commit replaces the history. Concurrent requests on one binding are not
// sequenced; the last commit wins.
func (b *Binding) Commit(c *conversation.Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conv = c
}

// Turns reports the number of committed turns.
func (b *Binding) Turns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conv.Len()
}
