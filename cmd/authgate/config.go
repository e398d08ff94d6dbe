// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/authgate/authgate/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the authgate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err //nolint:wrapcheck // already coded
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return err //nolint:wrapcheck // already coded
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
			}
			cmd.Printf("# source: %s\n", config.ResolvePath(opts.configFile))
			cmd.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a configuration file against the schema and semantic rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0], nil); err != nil {
				return err //nolint:wrapcheck // already coded
			}
			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	})

	return cmd
}
