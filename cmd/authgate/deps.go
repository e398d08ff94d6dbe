// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/authgate/authgate/internal/account"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/credential"
	"github.com/authgate/authgate/internal/gatekeeper"
	"github.com/authgate/authgate/internal/observability"
	"github.com/authgate/authgate/internal/store"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreFactory opens and connects the configured credential store.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.CredentialStore, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Hasher hashes player passwords.
	// Default: credential.NewArgon2idHasher with the default parameters
	Hasher credential.PasswordHasher

	// LogOutput receives log records.
	// Default: os.Stderr
	LogOutput io.Writer

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time

	// OnReady is called once serve has wired every component.
	// Default: nil
	OnReady func(ctx context.Context, rt Runtime)
}

// Runtime exposes the components serve wires to an embedding host.
type Runtime struct {
	Hook     gatekeeper.Hook
	Accounts *account.Service
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.StoreFactory == nil {
		out.StoreFactory = openStore
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker,
				observability.WithLogger(logger),
				observability.WithVersion(version))
		}
	}
	if out.Hasher == nil {
		out.Hasher = credential.NewArgon2idHasher(credential.DefaultArgon2Params)
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}
