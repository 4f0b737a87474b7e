// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file, which may
// hold provider API keys, is readable by group or others. It reports
// whether the warning was issued.
func WarnInsecurePermissions(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	const readableByOthers fs.FileMode = 0o044
	if info.Mode().Perm()&readableByOthers == 0 {
		return false
	}

	slog.Warn("config file has insecure permissions, provider keys may be exposed",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
	return true
}
