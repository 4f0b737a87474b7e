// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/radchat/radchat/internal/provider"
	"github.com/radchat/radchat/internal/toolset"
	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of every configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := Wire(cfg)
			if err != nil {
				return err
			}
			models, err := app.Providers.ListModels(contextOf(cmd))
			if err != nil {
				return err
			}
			return printModels(cmd.OutOrStdout(), models, cfg.Models.Default)
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, err := toolset.LoadCatalog(cfg.Tools.Catalog)
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), catalog, cfg.Tools.Endpoints)
		},
	}
}

func printModels(w io.Writer, models []provider.ModelInfo, current string) error {
	if len(models) == 0 {
		_, err := fmt.Fprintln(w, "No models available. Set providers.openai.api_key (or GITHUB_TOKEN) or providers.anthropic.api_key.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Available models (all support function calling):"); err != nil {
		return err
	}
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-35s (%s)\n", marker, m.ID, m.Publisher); err != nil {
			return err
		}
	}
	return nil
}

func printTools(w io.Writer, catalog *toolset.Catalog, endpoints map[string]string) error {
	byCategory := make(map[string][]toolset.Tool)
	for _, t := range catalog.Tools {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	for _, c := range categories {
		endpoint := endpoints[c]
		if endpoint == "" {
			endpoint = "no endpoint, disabled"
		}
		if _, err := fmt.Fprintf(w, "%s (%s)\n", c, endpoint); err != nil {
			return err
		}
		for _, t := range byCategory[c] {
			if _, err := fmt.Fprintf(w, "  %s\n", t.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
