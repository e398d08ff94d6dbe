// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
)

// rootOptions carries state shared by every subcommand of one root command.
type rootOptions struct {
	configFile string
	deps       *Deps
}

// NewRootCmd creates the root command for the authgate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	opts := &rootOptions{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "authgate - premium/offline login gatekeeper",
		Long: `authgate decides whether a connecting client is a premium account verified
by the identity authority or an offline account with a locally derived
identity, and persists per-account credentials in PostgreSQL or MongoDB.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authgate/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newPlayerCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}
