// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/credential"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/premium"
)

func newPlayerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Manage stored player accounts",
		Long: `Register, inspect and delete player credential records in the configured
store. Players are addressed by username (resolved to the offline id) or by
account id.`,
	}

	cmd.AddCommand(newPlayerRegisterCmd(opts))
	cmd.AddCommand(newPlayerShowCmd(opts))
	cmd.AddCommand(newPlayerDeleteCmd(opts))

	return cmd
}

// resolvePlayer maps a username or UUID argument to an account id.
func resolvePlayer(arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	if !premium.ValidUsername(premium.Normalize(arg)) {
		return uuid.Nil, oops.Code("CLI_INVALID_ARGUMENT").
			With("player", arg).
			Errorf("%q is neither an account id nor a valid username", arg)
	}
	return identity.OfflineID(arg), nil
}

type playerRegisterConfig struct {
	password      string
	passwordStdin bool
	id            string
	online        bool
}

func newPlayerRegisterCmd(opts *rootOptions) *cobra.Command {
	cfg := &playerRegisterConfig{}

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a player account",
		Long: `Register a player under its offline id, or under --id for accounts
verified by the identity authority. The record is written to the store
immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlayerRegister(cmd, opts, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.password, "password", "", "initial password")
	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read the initial password from stdin")
	cmd.Flags().StringVar(&cfg.id, "id", "", "account id (default: offline id of the username)")
	cmd.Flags().BoolVar(&cfg.online, "online", false, "mark the account as verified by the identity authority")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

func runPlayerRegister(cmd *cobra.Command, opts *rootOptions, cfg *playerRegisterConfig, username string) error {
	if !premium.ValidUsername(premium.Normalize(username)) {
		return oops.Code("CLI_INVALID_ARGUMENT").With("username", username).Errorf("invalid username %q", username)
	}
	id := identity.OfflineID(username)
	if cfg.id != "" {
		parsed, err := uuid.Parse(cfg.id)
		if err != nil {
			return oops.Code("CLI_INVALID_ARGUMENT").With("id", cfg.id).Wrap(err)
		}
		id = parsed
	}

	password := cfg.password
	if cfg.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return oops.Code("CLI_INVALID_ARGUMENT").Wrapf(err, "reading password from stdin")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	data := credential.Data{
		OnlineAccount: cfg.online,
		RegisteredAt:  opts.deps.Now().UTC(),
	}
	if password != "" {
		if err := data.SetPassword(opts.deps.Hasher, password); err != nil {
			return err //nolint:wrapcheck // already coded
		}
	}
	blob, err := credential.Encode(data)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	ctx := cmd.Context()
	a, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.accounts.Register(ctx, id, blob); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	cmd.Printf("registered %s as %s\n", username, id)
	return nil
}

// PlayerInfo is the printed view of a stored account. The password hash is
// never shown.
type PlayerInfo struct {
	ID            string     `json:"id"`
	PasswordSet   bool       `json:"password_set"`
	OnlineAccount bool       `json:"online_account"`
	LastIP        string     `json:"last_ip,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	RegisteredAt  time.Time  `json:"registered_at"`
}

func newPlayerShowCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <username|id>",
		Short: "Show a player account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlayerShow(cmd, opts, args[0], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the account as JSON")

	return cmd
}

func runPlayerShow(cmd *cobra.Command, opts *rootOptions, arg string, jsonOutput bool) error {
	id, err := resolvePlayer(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := opts.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	rec, err := a.accounts.Load(ctx, id)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	data, err := credential.Decode(rec.Data)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	info := PlayerInfo{
		ID:            id.String(),
		PasswordSet:   data.PasswordHash != "",
		OnlineAccount: data.OnlineAccount,
		LastIP:        data.LastIP,
		ValidUntil:    data.ValidUntil,
		RegisteredAt:  data.RegisteredAt,
	}
	if jsonOutput {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
		}
		cmd.Println(string(out))
		return nil
	}
	cmd.Print(formatPlayerTable(info))
	return nil
}

func formatPlayerTable(p PlayerInfo) string {
	validUntil := "-"
	if p.ValidUntil != nil {
		validUntil = p.ValidUntil.Format(time.RFC3339)
	}
	return formatRows([][2]string{
		{"ID", p.ID},
		{"PASSWORD SET", fmt.Sprint(p.PasswordSet)},
		{"ONLINE ACCOUNT", fmt.Sprint(p.OnlineAccount)},
		{"LAST IP", orDash(p.LastIP)},
		{"VALID UNTIL", validUntil},
		{"REGISTERED AT", p.RegisteredAt.Format(time.RFC3339)},
	})
}

func newPlayerDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username|id>",
		Short: "Delete a player account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePlayer(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			a.accounts.Delete(ctx, id)
			cmd.Printf("deleted %s\n", id)
			return nil
		},
	}
}
