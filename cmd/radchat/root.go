// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/radchat/radchat/internal/config"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root radchat command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "radchat",
		Short:         "RadChat, a radiology assistant with contact and imaging-criteria lookups",
		Long:          "RadChat answers radiology questions with a language model that can look up department contacts and imaging appropriateness criteria.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ~/.config/radchat/radchat.yaml when present)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newChatCmd(),
		newModelsCmd(),
		newToolsCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves and loads the configuration for cmd and installs the
// default slog logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	path := config.ResolvePath(explicit)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeCLISetupFailure, "loading config")
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Logging))

	config.WarnInsecurePermissions(path)
	slog.Debug("configuration loaded", "path", path)

	return cfg, nil
}

func newLogger(w io.Writer, lc config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
