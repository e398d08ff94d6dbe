// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package xdg provides XDG Base Directory paths for authgate.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "authgate"

// ConfigFileName is the name of the default configuration file.
const ConfigFileName = "config.yaml"

// ConfigDir returns the authgate config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default configuration file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// DataDir returns the authgate data directory.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// ResourcesDir returns the default directory of per-account resource files.
func ResourcesDir() string {
	return filepath.Join(DataDir(), "resources")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
