// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package gatekeeper

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Decision is the gatekeeper's verdict for one handshake.
type Decision int

// Decisions.
const (
	// Undetermined leaves the host's default flow untouched.
	Undetermined Decision = iota
	// ForcedOffline admits every client under its offline identity.
	ForcedOffline
	// VerifiedOnline lets the host authenticate the client against the authority.
	VerifiedOnline
	// VerifiedOffline admits the client immediately under its offline identity.
	VerifiedOffline
)

// String returns the log/metric label of the decision.
func (d Decision) String() string {
	switch d {
	case ForcedOffline:
		return "forced_offline"
	case VerifiedOnline:
		return "verified_online"
	case VerifiedOffline:
		return "verified_offline"
	default:
		return "undetermined"
	}
}

// Profile is the identity a session is admitted with.
type Profile struct {
	Name string
	ID   uuid.UUID
}

// Outcome is the result of Evaluate.
type Outcome struct {
	// HandshakeID correlates the log lines of one handshake.
	HandshakeID ulid.ULID
	Username    string
	Decision    Decision
	// Profile replaces the session profile when non-nil.
	Profile *Profile
	// ReadyToAccept tells the host to skip authentication and admit the client.
	ReadyToAccept bool
}

// Offline reports whether the client is admitted under its offline identity.
func (o Outcome) Offline() bool {
	return o.Decision == ForcedOffline || o.Decision == VerifiedOffline
}
