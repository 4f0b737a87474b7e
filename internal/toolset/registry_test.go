// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package toolset_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radchat/radchat/internal/toolset"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler() toolset.Handler {
	return toolset.HandlerFunc(func(_ context.Context, name string, args map[string]any) (map[string]any, error) {
		return map[string]any{"tool": name, "args": args}, nil
	})
}

func newCatalogRegistry(t *testing.T) *toolset.Registry {
	t.Helper()
	cat, err := toolset.DefaultCatalog()
	require.NoError(t, err)

	r := toolset.NewRegistry(0)
	for _, tool := range cat.Tools {
		r.Register(tool, echoHandler())
	}
	return r
}

func TestRegistry_Definitions(t *testing.T) {
	r := newCatalogRegistry(t)

	defs := r.Definitions()
	require.Len(t, defs, 6)
	assert.Equal(t, "search_phone_directory", defs[0].Name)
	assert.Equal(t, "list_acr_topics", defs[5].Name)

	assert.Equal(t, toolset.CategoryContact, r.Category("get_procedure_contact"))
	assert.Equal(t, toolset.CategoryCriteria, r.Category("get_acr_topic_details"))
	assert.Empty(t, r.Category("nope"))

	groups := r.ByCategory()
	assert.Len(t, groups[toolset.CategoryContact], 3)
	assert.Len(t, groups[toolset.CategoryCriteria], 3)
	assert.Equal(t, "get_acr_topic_details", r.Names()[0])
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	r := toolset.NewRegistry(0)
	r.Register(toolset.Tool{Name: "a", Category: "x"}, echoHandler())
	r.Register(toolset.Tool{Name: "b", Category: "x"}, echoHandler())
	r.Register(toolset.Tool{Name: "a", Category: "y"}, echoHandler())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "y", r.Category("a"))
}

func TestRegistry_Execute(t *testing.T) {
	r := newCatalogRegistry(t)

	got, err := r.Execute(context.Background(), "get_procedure_contact", map[string]any{"procedure": "picc_line"})
	require.NoError(t, err)
	assert.Equal(t, "get_procedure_contact", got["tool"])
	assert.Equal(t, map[string]any{"procedure": "picc_line"}, got["args"])

	got, err = r.Execute(context.Background(), "list_acr_topics", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got["args"], "nil arguments become an empty mapping")
}

func TestRegistry_UnknownToolIsInBand(t *testing.T) {
	r := newCatalogRegistry(t)

	got, err := r.Execute(context.Background(), "get_scheduling_contact", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "Unknown tool: get_scheduling_contact"}, got)
}

func TestRegistry_HandlerFailures(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		r := toolset.NewRegistry(0)
		r.Register(toolset.Tool{Name: "flaky", Category: "x"}, toolset.HandlerFunc(
			func(context.Context, string, map[string]any) (map[string]any, error) {
				return nil, errors.New("directory offline")
			}))

		_, err := r.Execute(context.Background(), "flaky", nil)
		require.Error(t, err)
		assert.True(t, radchaterr.HasCode(err, radchaterr.CodeAgentToolExecuteFailure))
		assert.Contains(t, err.Error(), "directory offline")
		assert.Equal(t, "flaky", radchaterr.FieldsOf(err)["tool"])
	})

	t.Run("panic", func(t *testing.T) {
		r := toolset.NewRegistry(0)
		r.Register(toolset.Tool{Name: "boom", Category: "x"}, toolset.HandlerFunc(
			func(context.Context, string, map[string]any) (map[string]any, error) {
				panic("nil map")
			}))

		got, err := r.Execute(context.Background(), "boom", nil)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, radchaterr.HasCode(err, radchaterr.CodeAgentToolExecuteFailure))
		assert.Contains(t, err.Error(), "nil map")
	})

	t.Run("timeout", func(t *testing.T) {
		r := toolset.NewRegistry(10 * time.Millisecond)
		r.Register(toolset.Tool{Name: "slow", Category: "x"}, toolset.HandlerFunc(
			func(ctx context.Context, _ string, _ map[string]any) (map[string]any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}))

		_, err := r.Execute(context.Background(), "slow", nil)
		require.Error(t, err)
		assert.True(t, radchaterr.IsTimeout(err))
	})

	t.Run("nil result", func(t *testing.T) {
		r := toolset.NewRegistry(0)
		r.Register(toolset.Tool{Name: "quiet", Category: "x"}, toolset.HandlerFunc(
			func(context.Context, string, map[string]any) (map[string]any, error) {
				return nil, nil
			}))

		got, err := r.Execute(context.Background(), "quiet", nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, got)
	})
}
