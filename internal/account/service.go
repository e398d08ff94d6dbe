// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package account is the session-facing view of credential records. Reads
// and writes go to the player cache; the cache flusher persists updates.
//
// Every operation that touches both the cache and the store runs under
// cache.PlayerCache.Exclusive, so a concurrent flush never writes back a
// record that was deleted after its snapshot.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/internal/store"
)

// ErrNotFound is returned when an account has no record.
var ErrNotFound = errors.New("account not found")

// ErrAlreadyRegistered is returned when registering an existing account.
var ErrAlreadyRegistered = errors.New("account already registered")

// ErrInvalidData is returned when record data is not a JSON document.
var ErrInvalidData = errors.New("account data is not valid JSON")

// Service loads, registers, updates and deletes account records.
type Service struct {
	cache  *cache.PlayerCache
	store  store.CredentialStore
	logger *slog.Logger
}

// NewService creates a Service over c and s.
func NewService(c *cache.PlayerCache, s store.CredentialStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: c, store: s, logger: logger}
}

// Load returns the record for id from the cache, falling back to the store.
// A record found in the store is cached.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (store.Record, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}
	var (
		r   store.Record
		err error
	)
	s.cache.Exclusive(func() {
		r, err = s.load(ctx, id)
	})
	return r, err
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (store.Record, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}
	data := s.store.GetUserData(ctx, id)
	if data == "" {
		return store.Record{}, oops.Code("ACCOUNT_NOT_FOUND").With("uuid", id.String()).Wrap(ErrNotFound)
	}
	r := store.Record{ID: id, Data: data}
	s.cache.Put(r)
	return r, nil
}

// Register persists a new account immediately and caches it.
func (s *Service) Register(ctx context.Context, id uuid.UUID, data string) error {
	if err := validData(id, data); err != nil {
		return err
	}
	var err error
	s.cache.Exclusive(func() {
		if s.cache.Contains(id) || !s.store.RegisterUser(ctx, id, data) {
			err = oops.Code("ACCOUNT_ALREADY_REGISTERED").With("uuid", id.String()).Wrap(ErrAlreadyRegistered)
			return
		}
		s.cache.Put(store.Record{ID: id, Data: data})
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account registered", "uuid", id.String())
	return nil
}

// Update replaces the cached data of id. The next flush persists it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, data string) error {
	if err := validData(id, data); err != nil {
		return err
	}
	var err error
	s.cache.Exclusive(func() {
		if _, err = s.load(ctx, id); err != nil {
			return
		}
		s.cache.Put(store.Record{ID: id, Data: data})
	})
	return err
}

// Delete removes id from the cache and the store.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) {
	s.cache.Exclusive(func() {
		s.cache.Remove(id)
		s.store.DeleteUserData(ctx, id)
	})
	s.logger.InfoContext(ctx, "account deleted", "uuid", id.String())
}

// validData rejects data the backends cannot store. One bad record would
// otherwise fail every batch flush.
func validData(id uuid.UUID, data string) error {
	if !json.Valid([]byte(data)) {
		return oops.Code("ACCOUNT_INVALID_DATA").With("uuid", id.String()).Wrap(ErrInvalidData)
	}
	return nil
}
