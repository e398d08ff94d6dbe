// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package resource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/resource"
	"github.com/authgate/authgate/pkg/errutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestFileRenamer_Path(t *testing.T) {
	id := uuid.MustParse("42653081-a90e-3475-b3d6-3550cdb43f8e")

	assert.Equal(t,
		filepath.Join("world", "advancements", id.String()+".json"),
		resource.FileRenamer{Dir: filepath.Join("world", "advancements")}.Path(id))
	assert.Equal(t,
		filepath.Join("stats", id.String()+".dat"),
		resource.FileRenamer{Dir: "stats", Ext: ".dat"}.Path(id))
}

func TestFileRenamer_Renames(t *testing.T) {
	r := resource.FileRenamer{Dir: t.TempDir()}
	oldID, newID := uuid.New(), uuid.New()
	writeFile(t, r.Path(oldID), `{"progress":1}`)

	require.NoError(t, r.RenameResource(context.Background(), oldID, newID))

	assert.NoFileExists(t, r.Path(oldID))
	assert.Equal(t, `{"progress":1}`, readFile(t, r.Path(newID)))
}

func TestFileRenamer_MissingSourceIsNoop(t *testing.T) {
	r := resource.FileRenamer{Dir: t.TempDir()}

	require.NoError(t, r.RenameResource(context.Background(), uuid.New(), uuid.New()))
}

func TestFileRenamer_SameIDIsNoop(t *testing.T) {
	r := resource.FileRenamer{Dir: t.TempDir()}
	id := uuid.New()
	writeFile(t, r.Path(id), "x")

	require.NoError(t, r.RenameResource(context.Background(), id, id))
	assert.Equal(t, "x", readFile(t, r.Path(id)))
}

func TestFileRenamer_NeverClobbers(t *testing.T) {
	r := resource.FileRenamer{Dir: t.TempDir()}
	oldID, newID := uuid.New(), uuid.New()
	writeFile(t, r.Path(oldID), "offline")
	writeFile(t, r.Path(newID), "online")

	err := r.RenameResource(context.Background(), oldID, newID)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "RESOURCE_TARGET_EXISTS")

	assert.Equal(t, "offline", readFile(t, r.Path(oldID)))
	assert.Equal(t, "online", readFile(t, r.Path(newID)))
}

func TestFileRenamer_MissingDirectoryIsNoop(t *testing.T) {
	r := resource.FileRenamer{Dir: filepath.Join(t.TempDir(), "absent")}

	require.NoError(t, r.RenameResource(context.Background(), uuid.New(), uuid.New()))
}

func TestNop(t *testing.T) {
	assert.NoError(t, resource.Nop{}.RenameResource(context.Background(), uuid.New(), uuid.New()))
}
