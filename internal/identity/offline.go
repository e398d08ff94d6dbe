// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package identity derives account identifiers for players that were not
// verified by the identity authority.
package identity

import (
	"crypto/md5" //nolint:gosec // MD5 is mandated by the name-based UUIDv3 convention, not used for security
	"strings"

	"github.com/google/uuid"
)

// offlinePrefix is prepended to the lowercase username before hashing.
const offlinePrefix = "OfflinePlayer:"

// OfflineName returns the exact string that is hashed to produce the
// offline identifier for username.
func OfflineName(username string) string {
	return offlinePrefix + strings.ToLower(username)
}

// OfflineID derives the deterministic offline identifier for username.
//
// The result is a version 3 (MD5, name-based) UUID computed over
// "OfflinePlayer:" + lowercase(username) with no namespace prefix, matching
// the identifiers offline-mode servers assign. It never fails.
func OfflineID(username string) uuid.UUID {
	sum := md5.Sum([]byte(OfflineName(username))) //nolint:gosec // see import comment

	var id uuid.UUID
	copy(id[:], sum[:])
	id[6] = (id[6] & 0x0f) | 0x30 // version 3
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// IsOffline reports whether id is the offline identifier derived from username.
func IsOffline(id uuid.UUID, username string) bool {
	return id == OfflineID(username)
}
