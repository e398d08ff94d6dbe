// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package cache holds live credential records in memory and writes them back
// to the credential store in periodic batches.
package cache

import (
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/store"
)

// PlayerCache maps account identifiers to their live credential record.
// It is safe for concurrent use.
//
// Writes that must not interleave with a flush go through Exclusive; a
// delete landing between a flush's snapshot and its store write would
// otherwise be undone by the upsert. Flusher.Flush holds the same lock from
// snapshot to store write.
type PlayerCache struct {
	persistMu sync.Mutex

	mu      sync.RWMutex
	records map[uuid.UUID]store.Record
}

// NewPlayerCache creates an empty cache.
func NewPlayerCache() *PlayerCache {
	return &PlayerCache{records: make(map[uuid.UUID]store.Record)}
}

// Exclusive runs fn while no flush is in progress. fn must not flush.
func (c *PlayerCache) Exclusive(fn func()) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	fn()
}

// Get returns the record for id.
func (c *PlayerCache) Get(id uuid.UUID) (store.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

// Put stores r under r.ID, replacing any previous record.
func (c *PlayerCache) Put(r store.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[r.ID] = r
}

// Remove drops the record for id.
func (c *PlayerCache) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

// Contains reports whether id has a record.
func (c *PlayerCache) Contains(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[id]
	return ok
}

// Len returns the number of records.
func (c *PlayerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Snapshot returns a copy of every record. The cache keeps its contents.
func (c *PlayerCache) Snapshot() map[uuid.UUID]store.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.records)
}

// Clear drops every record. Only teardown should call it.
func (c *PlayerCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.records)
}
