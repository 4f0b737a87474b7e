// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package toolset describes the tools offered to the model and dispatches
// the calls the model makes.
package toolset

import (
	_ "embed"
	"os"
	"strings"

	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Categories of the built-in tools.
const (
	CategoryContact  = "contact"
	CategoryCriteria = "criteria"
)

// Tool is one catalog entry.
type Tool struct {
	Name        string         `yaml:"name" json:"name"`
	Category    string         `yaml:"category" json:"category"`
	Description string         `yaml:"description" json:"description"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters"`
}

// Definition returns the provider-facing description of the tool.
func (t Tool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Catalog is an ordered list of tools.
type Catalog struct {
	Tools []Tool `yaml:"tools"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path selects the embedded
// default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeConfigLoadReadFailure,
			"reading tool catalog", radchaterr.Field("path", path))
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, radchaterr.With(err, radchaterr.Field("path", path))
	}
	return cat, nil
}

// ParseCatalog decodes and validates a YAML catalog. Tool names must be
// unique and every tool needs a category. A missing parameters schema
// becomes an empty object schema.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeAgentCatalogInvalid, "parsing tool catalog")
	}

	seen := make(map[string]bool, len(cat.Tools))
	for i := range cat.Tools {
		t := &cat.Tools[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, radchaterr.Errorf(radchaterr.CodeAgentCatalogInvalid, "tool %d has no name", i)
		}
		if seen[t.Name] {
			return nil, radchaterr.New(radchaterr.CodeAgentCatalogInvalid,
				"duplicate tool in catalog", radchaterr.FieldTool(t.Name))
		}
		seen[t.Name] = true
		if t.Category == "" {
			return nil, radchaterr.New(radchaterr.CodeAgentCatalogInvalid,
				"tool has no category", radchaterr.FieldTool(t.Name))
		}
		if t.Parameters == nil {
			t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
	}
	return &cat, nil
}

// Lookup finds a tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
