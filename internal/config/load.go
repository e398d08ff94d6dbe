// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authgate/authgate/internal/xdg"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":                   "storage.backend",
	"flush-interval":            "storage.flush_interval",
	"premium-auto-login":        "premium_auto_login",
	"forced-offline-identities": "forced_offline_identities",
	"verification-url":          "verification.base_url",
	"resources-dir":             "resources.dir",
	"log-format":                "log.format",
	"log-level":                 "log.level",
	"metrics-addr":              "metrics_addr",
}

// BindFlags defines the configuration override flags on flags. Only flags set
// explicitly override the file.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("backend", d.Storage.Backend, "storage backend (postgres or mongodb)")
	flags.Duration("flush-interval", d.Storage.FlushInterval, "interval between cache flushes")
	flags.Bool("premium-auto-login", d.PremiumAutoLogin, "let premium clients skip local authentication")
	flags.Bool("forced-offline-identities", d.ForcedOfflineIdentities, "admit every client under its offline identity")
	flags.String("verification-url", d.Verification.BaseURL, "identity authority base URL")
	flags.String("resources-dir", d.Resources.Dir, "directory of per-account resource files")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", d.MetricsAddr, "metrics and health listen address, empty to disable")
}

// ResolvePath returns the file Load reads: path itself, or the default file
// when path is empty.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	return xdg.ConfigFile()
}

// Load reads the configuration file at path, applies explicitly set flags from
// flags (may be nil) and validates the result. An empty path reads the default
// file if it exists; an explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	resolved := ResolvePath(path)
	data, err := os.ReadFile(resolved) //nolint:gosec // operator-supplied path
	switch {
	case err == nil:
		if err := ValidateSchema(data); err != nil {
			return nil, oops.With("path", resolved).Wrap(err)
		}
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", resolved).Wrap(err)
		}
	case path == "" && errors.Is(err, fs.ErrNotExist):
		// No default file: defaults and flags only.
	default:
		return nil, oops.Code("CONFIG_READ_FAILED").With("path", resolved).Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
