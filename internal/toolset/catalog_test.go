// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package toolset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/radchat/radchat/internal/toolset"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := toolset.DefaultCatalog()
	require.NoError(t, err)
	require.Len(t, cat.Tools, 6)

	categories := make(map[string][]string)
	for _, tool := range cat.Tools {
		categories[tool.Category] = append(categories[tool.Category], tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.Parameters["type"], tool.Name)
	}
	assert.Equal(t, []string{"search_phone_directory", "get_reading_room_contact", "get_procedure_contact"},
		categories[toolset.CategoryContact])
	assert.Equal(t, []string{"search_acr_criteria", "get_acr_topic_details", "list_acr_topics"},
		categories[toolset.CategoryCriteria])

	search, ok := cat.Lookup("search_phone_directory")
	require.True(t, ok)
	assert.Equal(t, []any{"query"}, search.Parameters["required"])
	props := search.Parameters["properties"].(map[string]any)
	location := props["location"].(map[string]any)
	assert.Equal(t, []any{"Duke North", "DMP", "Cancer Center", "ED"}, location["enum"])

	list, ok := cat.Lookup("list_acr_topics")
	require.True(t, ok)
	assert.NotContains(t, list.Parameters, "required")

	_, ok = cat.Lookup("get_scheduling_contact")
	assert.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		cat, err := toolset.LoadCatalog("")
		require.NoError(t, err)
		assert.Len(t, cat.Tools, 6)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: lookup_pager
    category: contact
    description: Find a pager number.
`), 0o600))

		cat, err := toolset.LoadCatalog(path)
		require.NoError(t, err)
		require.Len(t, cat.Tools, 1)
		assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, cat.Tools[0].Parameters)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := toolset.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, radchaterr.HasCode(err, radchaterr.CodeConfigLoadReadFailure))
	})
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "syntax", yaml: "tools: [\n"},
		{name: "no name", yaml: "tools:\n  - category: contact\n"},
		{name: "no category", yaml: "tools:\n  - name: a\n"},
		{name: "duplicate", yaml: "tools:\n  - name: a\n    category: x\n  - name: a\n    category: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toolset.ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, radchaterr.IsInvalidInput(err))
		})
	}
}
