// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package store defines the credential persistence contract shared by every
// storage backend.
//
// Lookups never fail loudly: a backend that cannot answer reports the
// documented fallback (false, empty string, no-op) and logs the cause. Only
// Connect and SaveBatch return errors, because startup and bulk flushes need
// to know whether data reached the backend.
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Record is the persisted credential state of one account. Data is opaque
// to the store; its schema belongs to the layer above.
type Record struct {
	ID   uuid.UUID
	Data string
}

// CredentialStore persists credential records keyed by account identifier.
// Implementations are safe for concurrent use.
type CredentialStore interface {
	// Connect establishes or validates the backend connection.
	Connect(ctx context.Context) error

	// IsUserRegistered reports whether a record exists. Backend errors read as false.
	IsUserRegistered(ctx context.Context, id uuid.UUID) bool

	// RegisterUser inserts a record and returns true, or returns false
	// without touching the existing record if id is already registered.
	RegisterUser(ctx context.Context, id uuid.UUID, data string) bool

	// UpdateUserData replaces the data of an existing record. It never inserts.
	UpdateUserData(ctx context.Context, id uuid.UUID, data string)

	// DeleteUserData removes a record if it exists.
	DeleteUserData(ctx context.Context, id uuid.UUID)

	// GetUserData returns the record data, or "" when absent or on error.
	GetUserData(ctx context.Context, id uuid.UUID) string

	// SaveBatch upserts every record in one bulk operation.
	SaveBatch(ctx context.Context, records map[uuid.UUID]Record) error

	// Close releases the connection. Closing twice is a no-op.
	Close(ctx context.Context)

	// IsClosed reports whether the connection is released.
	IsClosed() bool
}

// Backend names a storage implementation.
type Backend string

// Supported backends.
const (
	BackendPostgres Backend = "postgres"
	BackendMongoDB  Backend = "mongodb"
)

// Backends lists every supported backend.
func Backends() []Backend {
	return []Backend{BackendPostgres, BackendMongoDB}
}

// ParseBackend resolves a configured backend name.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(Backends(), b) {
		return b, nil
	}
	return "", oops.Code("STORE_CONFIG_INVALID").
		With("backend", name).
		Errorf("unknown storage backend %q", name)
}

// SortedIDs returns the keys of records in ascending string order, so bulk
// writes touch rows in a stable order.
func SortedIDs(records map[uuid.UUID]Record) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}
