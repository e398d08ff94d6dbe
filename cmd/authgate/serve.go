// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/pkg/errutil"
)

// shutdownTimeout bounds the final flush and server shutdown.
const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper with its cache flusher and health endpoints",
		Long: `Connect the credential store, start the periodic cache flush and the
metrics/health endpoints, and run until interrupted. Cached records are
flushed one last time before the store is closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	a, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	logger := a.logger
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	registry := prometheus.NewRegistry()
	if a.cfg.MetricsAddr != "" {
		obsServer = opts.deps.ObservabilityServerFactory(a.cfg.MetricsAddr, func() bool { return !a.store.IsClosed() }, logger)
		registry = obsServer.Registry()
	}

	hook, err := a.newGatekeeper(registry)
	if err != nil {
		a.close(ctx)
		return err
	}

	flusher := cache.NewFlusher(a.players, a.store,
		cache.WithFlushInterval(a.cfg.Storage.FlushInterval),
		cache.WithFlusherLogger(logger),
		cache.WithFlusherMetrics(cache.NewMetrics(registry, a.players)))
	if err := flusher.Start(ctx); err != nil {
		a.close(ctx)
		return err //nolint:wrapcheck // already coded
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdown(logger, flusher, nil, a)
			return err //nolint:wrapcheck // already coded
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if opts.deps.OnReady != nil {
		opts.deps.OnReady(ctx, Runtime{Hook: hook, Accounts: a.accounts})
	}

	cmd.Println("authgate ready")
	logger.InfoContext(ctx, "authgate ready",
		"backend", a.cfg.Storage.Backend,
		"flush_interval", flusher.Interval().String(),
		"premium_auto_login", a.cfg.PremiumAutoLogin,
		"forced_offline_identities", a.cfg.ForcedOfflineIdentities,
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdown(logger, flusher, obsServer, a)
	return nil
}

// shutdown stops the endpoints, performs the final flush and closes the store.
func shutdown(logger *slog.Logger, flusher *cache.Flusher, obsServer ObservabilityServer, a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	if err := flusher.Stop(ctx); err != nil {
		errutil.LogError(logger, "final cache flush failed", err)
	}
	a.close(ctx)
	logger.Info("shutdown complete")
}

// monitorServerErrors cancels ctx when the server reports an error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
