// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package gatekeeper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/premium"
	"github.com/authgate/authgate/internal/resource"
)

// Hook is the pre-accept interface the host's connection pipeline calls.
type Hook interface {
	Evaluate(ctx context.Context, username string) Outcome
	Accept(ctx context.Context, outcome Outcome, authenticated Profile) Profile
}

// Verifier resolves usernames against the identity authority.
type Verifier interface {
	Verify(ctx context.Context, username string) premium.Result
}

// KnownAccounts reports whether an identifier already belongs to a local
// offline account.
type KnownAccounts interface {
	Contains(id uuid.UUID) bool
}

// Registrations reports whether an identifier is registered in the store.
type Registrations interface {
	IsUserRegistered(ctx context.Context, id uuid.UUID) bool
}

// Policy is the login policy.
type Policy struct {
	// PremiumAutoLogin lets premium clients skip local authentication.
	PremiumAutoLogin bool
	// ForcedOfflineIdentities admits every client under its offline identity.
	ForcedOfflineIdentities bool
	// ForcedOfflineUsernames are glob patterns of names that are always offline.
	ForcedOfflineUsernames []string
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithKnownAccounts consults the live player cache before verification.
func WithKnownAccounts(k KnownAccounts) Option {
	return func(g *Gatekeeper) {
		g.known = k
	}
}

// WithRegistrations consults the credential store before verification.
func WithRegistrations(r Registrations) Option {
	return func(g *Gatekeeper) {
		g.registrations = r
	}
}

// WithRenamer sets the capability used to migrate resources to online ids.
func WithRenamer(r resource.Renamer) Option {
	return func(g *Gatekeeper) {
		g.renamer = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatekeeper) {
		g.logger = logger
	}
}

// WithMetrics records decisions.
func WithMetrics(m *Metrics) Option {
	return func(g *Gatekeeper) {
		g.metrics = m
	}
}

// Gatekeeper implements Hook.
type Gatekeeper struct {
	policy        Policy
	offlineNames  []glob.Glob
	verifier      Verifier
	known         KnownAccounts
	registrations Registrations
	renamer       resource.Renamer
	logger        *slog.Logger
	metrics       *Metrics
	tracer        trace.Tracer
}

// New creates a Gatekeeper. It fails if a forced-offline pattern does not compile.
func New(policy Policy, verifier Verifier, opts ...Option) (*Gatekeeper, error) {
	patterns, err := CompilePatterns(policy.ForcedOfflineUsernames)
	if err != nil {
		return nil, err
	}

	g := &Gatekeeper{
		policy:       policy,
		offlineNames: patterns,
		verifier:     verifier,
		renamer:      resource.Nop{},
		logger:       slog.Default(),
		tracer:       otel.Tracer("github.com/authgate/authgate/internal/gatekeeper"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CompilePatterns compiles forced-offline username patterns. Patterns are
// matched case-insensitively.
func CompilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, oops.Code("GATEKEEPER_INVALID_PATTERN").With("pattern", p).Wrap(err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Evaluate decides how the handshake for username continues.
func (g *Gatekeeper) Evaluate(ctx context.Context, username string) Outcome {
	out := Outcome{HandshakeID: ulid.Make(), Username: username}

	ctx, span := g.tracer.Start(ctx, "gatekeeper.evaluate",
		trace.WithAttributes(
			attribute.String("handshake_id", out.HandshakeID.String()),
			attribute.String("username", username),
		))
	defer span.End()

	logger := g.logger.With("handshake_id", out.HandshakeID.String(), "username", username)

	switch {
	case g.policy.ForcedOfflineIdentities:
		out.Decision = ForcedOffline
		out.Profile = offlineProfile(username)
	case !g.policy.PremiumAutoLogin:
		out.Decision = Undetermined
	default:
		if reason := g.offlineReason(ctx, username); reason != "" {
			logger.DebugContext(ctx, "offline account, skipping verification", "reason", reason)
			out = admitOffline(out)
			break
		}
		switch result := g.verifier.Verify(ctx, username); result {
		case premium.NotPremium:
			out = admitOffline(out)
		default:
			if result == premium.Unknown {
				logger.InfoContext(ctx, "verification inconclusive, continuing online")
			}
			out.Decision = VerifiedOnline
		}
	}

	span.SetAttributes(attribute.String("decision", out.Decision.String()))
	g.metrics.recordDecision(out.Decision)
	logger.InfoContext(ctx, "handshake evaluated",
		"decision", out.Decision.String(),
		"ready_to_accept", out.ReadyToAccept,
	)
	return out
}

// offlineReason returns why username is certainly offline, or "".
func (g *Gatekeeper) offlineReason(ctx context.Context, username string) string {
	name := premium.Normalize(username)
	if !premium.ValidUsername(name) {
		return "invalid username"
	}
	for _, p := range g.offlineNames {
		if p.Match(name) {
			return "forced offline username"
		}
	}

	id := identity.OfflineID(username)
	if g.known != nil && g.known.Contains(id) {
		return "cached offline account"
	}
	if g.registrations != nil && g.registrations.IsUserRegistered(ctx, id) {
		return "registered offline account"
	}
	return ""
}

func offlineProfile(username string) *Profile {
	return &Profile{Name: username, ID: identity.OfflineID(username)}
}

func admitOffline(out Outcome) Outcome {
	out.Decision = VerifiedOffline
	out.Profile = offlineProfile(out.Username)
	out.ReadyToAccept = true
	return out
}

// Accept returns the profile the session is admitted with.
//
// Offline decisions admit the substituted profile. A verified online client
// whose authority-issued id differs from its offline id has its resources
// migrated to the online id; migration failures never block the accept.
func (g *Gatekeeper) Accept(ctx context.Context, outcome Outcome, authenticated Profile) Profile {
	switch outcome.Decision {
	case ForcedOffline:
		name := authenticated.Name
		if name == "" {
			name = outcome.Username
		}
		return *offlineProfile(name)
	case VerifiedOffline:
		if outcome.Profile != nil {
			return *outcome.Profile
		}
		return *offlineProfile(outcome.Username)
	case VerifiedOnline:
		g.migrate(ctx, outcome, authenticated)
		return authenticated
	default:
		return authenticated
	}
}

func (g *Gatekeeper) migrate(ctx context.Context, outcome Outcome, authenticated Profile) {
	if authenticated.ID == uuid.Nil {
		return
	}
	name := authenticated.Name
	if name == "" {
		name = outcome.Username
	}
	offlineID := identity.OfflineID(name)
	if offlineID == authenticated.ID {
		return
	}

	if err := g.renamer.RenameResource(ctx, offlineID, authenticated.ID); err != nil {
		g.logger.WarnContext(ctx, "resource migration failed",
			"handshake_id", outcome.HandshakeID.String(),
			"username", name,
			"offline_id", offlineID.String(),
			"online_id", authenticated.ID.String(),
			"error", err,
		)
	}
}

// Compile-time interface check.
var _ Hook = (*Gatekeeper)(nil)
