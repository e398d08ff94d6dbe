// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/account"
	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/gatekeeper"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/premium"
	"github.com/authgate/authgate/internal/resource"
	"github.com/authgate/authgate/internal/store"
)

const serviceName = "authgate"

// app holds the components one command invocation shares. It is built once
// per invocation and closed when the command returns.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.CredentialStore
	players  *cache.PlayerCache
	accounts *account.Service
}

// loadConfig reads the configuration for cmd and builds its logger.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // config errors are coded
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // already coded
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, o.deps.LogOutput)
	return cfg, logger, nil
}

// openApp loads the configuration and connects the credential store.
func (o *rootOptions) openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, logger, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s, err := o.deps.StoreFactory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	players := cache.NewPlayerCache()
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		players:  players,
		accounts: account.NewService(players, s, logger),
	}, nil
}

// renamer returns the resource migration capability cfg describes.
func (a *app) renamer() resource.Renamer {
	if a.cfg.Resources.Dir == "" {
		return resource.Nop{}
	}
	return resource.FileRenamer{Dir: a.cfg.Resources.Dir, Ext: a.cfg.Resources.Ext, Logger: a.logger}
}

// newGatekeeper wires the verifier and the gatekeeper, registering their
// metrics on reg.
func (a *app) newGatekeeper(reg prometheus.Registerer) (*gatekeeper.Gatekeeper, error) {
	verifier, err := premium.NewVerifier(a.cfg.Verification.Premium(),
		premium.WithLogger(a.logger),
		premium.WithMetrics(premium.NewMetrics(reg)))
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	return gatekeeper.New(a.cfg.Policy(), verifier, //nolint:wrapcheck // already coded
		gatekeeper.WithKnownAccounts(a.players),
		gatekeeper.WithRegistrations(a.store),
		gatekeeper.WithRenamer(a.renamer()),
		gatekeeper.WithLogger(a.logger),
		gatekeeper.WithMetrics(gatekeeper.NewMetrics(reg)))
}

func (a *app) close(ctx context.Context) {
	a.store.Close(ctx)
	a.players.Clear()
}
