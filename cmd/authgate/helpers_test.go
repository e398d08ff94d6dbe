// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/credential"
	"github.com/authgate/authgate/internal/store"
)

// memStore is an in-memory store.CredentialStore.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]string
	batches []map[uuid.UUID]store.Record
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]string)}
}

func (m *memStore) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
	return nil
}

func (m *memStore) IsUserRegistered(_ context.Context, id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}

func (m *memStore) RegisterUser(_ context.Context, id uuid.UUID, data string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return false
	}
	m.records[id] = data
	return true
}

func (m *memStore) UpdateUserData(_ context.Context, id uuid.UUID, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		m.records[id] = data
	}
}

func (m *memStore) DeleteUserData(_ context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

func (m *memStore) GetUserData(_ context.Context, id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *memStore) SaveBatch(_ context.Context, records map[uuid.UUID]store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, maps.Clone(records))
	for id, r := range records {
		m.records[id] = r.Data
	}
	return nil
}

func (m *memStore) Close(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *memStore) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *memStore) get(id uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[id]
	return data, ok
}

// testDeps returns dependencies backed by s with a fast hasher and a fixed clock.
func testDeps(s *memStore) *Deps {
	return &Deps{
		StoreFactory: func(context.Context, *config.Config, *slog.Logger) (store.CredentialStore, error) {
			return s, nil
		},
		Hasher:    credential.NewArgon2idHasher(credential.Argon2Params{Time: 1, Memory: 1024, Threads: 1}),
		LogOutput: io.Discard,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

// isolateXDG points every XDG directory at a temporary location.
func isolateXDG(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

// writeTestConfig writes a config file with the endpoints disabled plus extra.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "metrics_addr: \"\"\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with args and returns its output.
func execute(ctx context.Context, deps *Deps, args ...string) (string, error) {
	cmd := newRootCmd(deps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}
