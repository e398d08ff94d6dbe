// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package resource migrates per-account state when an account's identifier
// changes, for example when an offline player is verified as premium.
package resource

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultExt is the file extension of per-account resource files.
const DefaultExt = ".json"

// Renamer moves the resources of oldID to newID.
type Renamer interface {
	RenameResource(ctx context.Context, oldID, newID uuid.UUID) error
}

// Nop is a Renamer that does nothing.
type Nop struct{}

// RenameResource implements Renamer.
func (Nop) RenameResource(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// FileRenamer renames <Dir>/<id><Ext> files.
//
// A missing source is not an error. An existing target is never replaced.
type FileRenamer struct {
	Dir    string
	Ext    string
	Logger *slog.Logger
}

// Path returns the resource file path for id.
func (r FileRenamer) Path(id uuid.UUID) string {
	ext := r.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(r.Dir, id.String()+ext)
}

// RenameResource implements Renamer.
func (r FileRenamer) RenameResource(ctx context.Context, oldID, newID uuid.UUID) error {
	if oldID == newID {
		return nil
	}
	from, to := r.Path(oldID), r.Path(newID)

	if _, err := os.Lstat(from); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("RESOURCE_RENAME_FAILED").With("from", from).Wrap(err)
	}

	switch _, err := os.Lstat(to); {
	case err == nil:
		return oops.Code("RESOURCE_TARGET_EXISTS").
			With("from", from).
			With("to", to).
			Errorf("resource for %s already exists", newID)
	case !errors.Is(err, fs.ErrNotExist):
		return oops.Code("RESOURCE_RENAME_FAILED").With("to", to).Wrap(err)
	}

	if err := os.Rename(from, to); err != nil {
		return oops.Code("RESOURCE_RENAME_FAILED").With("from", from).With("to", to).Wrap(err)
	}

	r.logger().InfoContext(ctx, "migrated account resource", "from", from, "to", to)
	return nil
}

func (r FileRenamer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Compile-time interface checks.
var (
	_ Renamer = Nop{}
	_ Renamer = FileRenamer{}
)
