// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/gatekeeper"
)

// CheckResult is the printed outcome of one gatekeeper evaluation.
type CheckResult struct {
	HandshakeID   ulid.ULID `json:"handshake_id"`
	Username      string    `json:"username"`
	Decision      string    `json:"decision"`
	ProfileName   string    `json:"profile_name,omitempty"`
	ProfileID     string    `json:"profile_id,omitempty"`
	ReadyToAccept bool      `json:"ready_to_accept"`
	AcceptedName  string    `json:"accepted_name,omitempty"`
	AcceptedID    string    `json:"accepted_id,omitempty"`
}

type checkConfig struct {
	jsonOutput bool
	onlineID   string
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check <username>",
		Short: "Evaluate the login policy for a username",
		Long: `Run the gatekeeper once for username against the configured policy,
credential store and identity authority, and print the decision.

With --online-id the handshake is also accepted as if the authority had
issued that id, which migrates offline resources when the ids differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, cfg, args[0])
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output the result as JSON")
	cmd.Flags().StringVar(&cfg.onlineID, "online-id", "", "accept the handshake with this authority-issued id")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, cfg *checkConfig, username string) error {
	var onlineID uuid.UUID
	if cfg.onlineID != "" {
		id, err := uuid.Parse(cfg.onlineID)
		if err != nil {
			return oops.Code("CLI_INVALID_ARGUMENT").With("online_id", cfg.onlineID).Wrap(err)
		}
		onlineID = id
	}

	ctx := cmd.Context()
	a, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	gk, err := a.newGatekeeper(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	outcome := gk.Evaluate(ctx, username)
	result := CheckResult{
		HandshakeID:   outcome.HandshakeID,
		Username:      outcome.Username,
		Decision:      outcome.Decision.String(),
		ReadyToAccept: outcome.ReadyToAccept,
	}
	if outcome.Profile != nil {
		result.ProfileName = outcome.Profile.Name
		result.ProfileID = outcome.Profile.ID.String()
	}
	if onlineID != uuid.Nil {
		accepted := gk.Accept(ctx, outcome, gatekeeper.Profile{Name: username, ID: onlineID})
		result.AcceptedName = accepted.Name
		result.AcceptedID = accepted.ID.String()
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
		}
		cmd.Println(string(out))
		return nil
	}
	cmd.Print(formatCheckTable(result))
	return nil
}

func formatCheckTable(r CheckResult) string {
	rows := [][2]string{
		{"HANDSHAKE", r.HandshakeID.String()},
		{"USERNAME", r.Username},
		{"DECISION", r.Decision},
		{"PROFILE NAME", orDash(r.ProfileName)},
		{"PROFILE ID", orDash(r.ProfileID)},
		{"READY TO ACCEPT", fmt.Sprint(r.ReadyToAccept)},
	}
	if r.AcceptedID != "" {
		rows = append(rows, [2]string{"ACCEPTED NAME", r.AcceptedName}, [2]string{"ACCEPTED ID", r.AcceptedID})
	}
	return formatRows(rows)
}

// formatRows renders label/value pairs as an aligned two-column table.
func formatRows(rows [][2]string) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]) //nolint:errcheck // strings.Builder never fails
	}
	_ = w.Flush() //nolint:errcheck // strings.Builder never fails
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
