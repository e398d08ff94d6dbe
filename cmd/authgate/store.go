// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/internal/store/mongodb"
	"github.com/authgate/authgate/internal/store/postgres"
)

// newStore builds the backend cfg selects without connecting it.
func newStore(cfg *config.Config, logger *slog.Logger) (store.CredentialStore, error) {
	backend, err := store.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	switch backend {
	case store.BackendPostgres:
		return postgres.New(cfg.Storage.Postgres.Postgres(), postgres.WithLogger(logger)), nil
	case store.BackendMongoDB:
		return mongodb.New(cfg.Storage.MongoDB.MongoDB(), mongodb.WithLogger(logger)), nil
	default:
		return nil, oops.Code("STORE_CONFIG_INVALID").With("backend", backend).Errorf("backend %q has no implementation", backend)
	}
}

// openStore builds and connects the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.CredentialStore, error) {
	s, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err //nolint:wrapcheck // backends return coded errors
	}
	logger.InfoContext(ctx, "credential store connected", "backend", cfg.Storage.Backend)
	return s, nil
}
