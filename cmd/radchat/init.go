// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package main

import (
	"fmt"

	"github.com/radchat/radchat/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long:  "Write the default configuration to --config, or ~/.config/radchat/radchat.yaml. An existing file is left untouched.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}

			written, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			if !written {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nNext: add an API key, then run `radchat chat`.\n", path)
			return err
		},
	}
}
