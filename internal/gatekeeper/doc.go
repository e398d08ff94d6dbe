// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package gatekeeper decides, at connection handshake time, whether a client
// continues through the host's online authentication or is admitted right
// away under its derived offline identity.
//
// The host calls Evaluate when a client announces its username, and Accept
// just before the session is admitted. Evaluate never rejects a client: an
// unreachable identity authority lets the online flow proceed.
package gatekeeper
