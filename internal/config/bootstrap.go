// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	radchaterr "github.com/radchat/radchat/pkg/errors"
)

//go:embed radchat.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/radchat/radchat.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", radchaterr.Errorf(radchaterr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "radchat", "radchat.yaml"), nil
}

// WriteDefault writes the commented default config to path unless a file
// is already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, radchaterr.Errorf(radchaterr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, radchaterr.Errorf(radchaterr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}

	slog.Info("created default config", "path", path)
	return true, nil
}

// ResolvePath picks the config file to load: the explicit path if given,
// else the default location when a file exists there, else "" (defaults and
// environment only).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	p, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("no default config path", "error", err)
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
