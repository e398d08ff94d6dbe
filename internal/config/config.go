// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package config loads the authgate configuration from a YAML file and
// command-line flags.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/internal/gatekeeper"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/premium"
	"github.com/authgate/authgate/internal/resource"
	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/internal/store/mongodb"
	"github.com/authgate/authgate/internal/store/postgres"
	"github.com/authgate/authgate/internal/xdg"
)

// Config is the full authgate configuration.
type Config struct {
	PremiumAutoLogin        bool               `koanf:"premium_auto_login" yaml:"premium_auto_login" json:"premium_auto_login,omitempty" jsonschema:"description=Let premium clients skip local authentication"`
	ForcedOfflineIdentities bool               `koanf:"forced_offline_identities" yaml:"forced_offline_identities" json:"forced_offline_identities,omitempty" jsonschema:"description=Admit every client under its offline identity"`
	ForcedOfflineUsernames  []string           `koanf:"forced_offline_usernames" yaml:"forced_offline_usernames" json:"forced_offline_usernames,omitempty" jsonschema:"description=Glob patterns of usernames that are always offline"`
	Verification            VerificationConfig `koanf:"verification" yaml:"verification" json:"verification,omitempty"`
	Storage                 StorageConfig      `koanf:"storage" yaml:"storage" json:"storage,omitempty"`
	Resources               ResourcesConfig    `koanf:"resources" yaml:"resources" json:"resources,omitempty"`
	Log                     LogConfig          `koanf:"log" yaml:"log" json:"log,omitempty"`
	MetricsAddr             string             `koanf:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Listen address of the metrics and health endpoints; empty disables them"`
}

// VerificationConfig configures the identity authority client.
type VerificationConfig struct {
	BaseURL        string        `koanf:"base_url" yaml:"base_url" json:"base_url,omitempty" jsonschema:"format=uri"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout,omitempty"`
	ReadTimeout    time.Duration `koanf:"read_timeout" yaml:"read_timeout" json:"read_timeout,omitempty"`
}

// StorageConfig selects and configures the credential store.
type StorageConfig struct {
	Backend       string         `koanf:"backend" yaml:"backend" json:"backend,omitempty" jsonschema:"enum=postgres,enum=mongodb"`
	FlushInterval time.Duration  `koanf:"flush_interval" yaml:"flush_interval" json:"flush_interval,omitempty"`
	Postgres      PostgresConfig `koanf:"postgres" yaml:"postgres" json:"postgres,omitempty"`
	MongoDB       MongoDBConfig  `koanf:"mongodb" yaml:"mongodb" json:"mongodb,omitempty"`
}

// PostgresConfig holds the relational backend parameters.
type PostgresConfig struct {
	Host     string `koanf:"host" yaml:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port" json:"port,omitempty" jsonschema:"minimum=0,maximum=65535"`
	User     string `koanf:"user" yaml:"user" json:"user,omitempty"`
	Password string `koanf:"password" yaml:"password" json:"password,omitempty"`
	Database string `koanf:"database" yaml:"database" json:"database,omitempty"`
	Table    string `koanf:"table" yaml:"table" json:"table,omitempty"`
	TLS      bool   `koanf:"tls" yaml:"tls" json:"tls,omitempty"`
}

// MongoDBConfig holds the document backend parameters.
type MongoDBConfig struct {
	Host       string `koanf:"host" yaml:"host" json:"host,omitempty"`
	Port       int    `koanf:"port" yaml:"port" json:"port,omitempty" jsonschema:"minimum=0,maximum=65535"`
	User       string `koanf:"user" yaml:"user" json:"user,omitempty"`
	Password   string `koanf:"password" yaml:"password" json:"password,omitempty"`
	Database   string `koanf:"database" yaml:"database" json:"database,omitempty"`
	Collection string `koanf:"collection" yaml:"collection" json:"collection,omitempty"`
	TLS        bool   `koanf:"tls" yaml:"tls" json:"tls,omitempty"`
}

// ResourcesConfig locates per-account resource files migrated on identity changes.
type ResourcesConfig struct {
	Dir string `koanf:"dir" yaml:"dir" json:"dir,omitempty" jsonschema:"description=Directory of <uuid><ext> files; empty disables migration"`
	Ext string `koanf:"ext" yaml:"ext" json:"ext,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the configuration used for keys absent from every source.
func Default() Config {
	return Config{
		PremiumAutoLogin: true,
		Verification: VerificationConfig{
			BaseURL:        premium.DefaultBaseURL,
			ConnectTimeout: premium.DefaultConnectTimeout,
			ReadTimeout:    premium.DefaultReadTimeout,
		},
		Storage: StorageConfig{
			Backend:       string(store.BackendPostgres),
			FlushInterval: cache.DefaultFlushInterval,
			Postgres: PostgresConfig{
				Host:     postgres.DefaultHost,
				Port:     postgres.DefaultPort,
				Database: "authgate",
				Table:    postgres.DefaultTable,
			},
			MongoDB: MongoDBConfig{
				Host:       mongodb.DefaultHost,
				Port:       mongodb.DefaultPort,
				Database:   mongodb.DefaultDatabase,
				Collection: mongodb.DefaultCollection,
			},
		},
		Resources: ResourcesConfig{
			Dir: xdg.ResourcesDir(),
			Ext: resource.DefaultExt,
		},
		Log: LogConfig{
			Format: logging.FormatJSON,
			Level:  "info",
		},
		MetricsAddr: "127.0.0.1:9100",
	}
}

// Validate checks the rules the schema cannot express.
func (c *Config) Validate() error {
	if _, err := store.ParseBackend(c.Storage.Backend); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if c.Verification.ConnectTimeout <= 0 {
		return invalid("verification.connect_timeout", "must be positive")
	}
	if c.Verification.ReadTimeout <= 0 {
		return invalid("verification.read_timeout", "must be positive")
	}
	if c.Storage.FlushInterval <= 0 {
		return invalid("storage.flush_interval", "must be positive")
	}
	if _, err := gatekeeper.CompilePatterns(c.ForcedOfflineUsernames); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "forced_offline_usernames").Wrap(err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	if c.MetricsAddr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(c.MetricsAddr)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "metrics_addr").Wrap(err)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return invalid("metrics_addr", "port must be a number between 0 and 65535")
	}
	return nil
}

func invalid(field, msg string) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s %s", field, msg)
}

// Policy returns the gatekeeper login policy.
func (c *Config) Policy() gatekeeper.Policy {
	return gatekeeper.Policy{
		PremiumAutoLogin:        c.PremiumAutoLogin,
		ForcedOfflineIdentities: c.ForcedOfflineIdentities,
		ForcedOfflineUsernames:  c.ForcedOfflineUsernames,
	}
}

// Premium returns the verifier settings.
func (c VerificationConfig) Premium() premium.Config {
	return premium.Config(c)
}

// Postgres returns the relational backend settings.
func (c PostgresConfig) Postgres() postgres.Config {
	return postgres.Config(c)
}

// MongoDB returns the document backend settings.
func (c MongoDBConfig) MongoDB() mongodb.Config {
	return mongodb.Config(c)
}

// Redacted returns a copy of c with credentials masked.
func (c Config) Redacted() Config {
	const mask = "********"
	if c.Storage.Postgres.Password != "" {
		c.Storage.Postgres.Password = mask
	}
	if c.Storage.MongoDB.Password != "" {
		c.Storage.MongoDB.Password = mask
	}
	c.ForcedOfflineUsernames = append([]string(nil), c.ForcedOfflineUsernames...)
	return c
}
