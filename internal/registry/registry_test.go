// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notemill/pkg/types"
)

func testExport() types.Export {
	return types.Export{
		Provider: types.ProviderClaude,
		Date:     "2026-01-15",
		Path:     "providers/claude/2026-01-15",
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "registry.db")

	reg, err := Open(path)
	require.NoError(t, err)
	defer reg.Close()

	assert.FileExists(t, path)
}

func TestMarkAndCheckProcessed(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	exp := testExport()

	done, err := reg.IsProcessed(exp.Key())
	require.NoError(t, err)
	assert.False(t, done, "fresh registry should not know the export")

	require.NoError(t, reg.MarkProcessed(exp))

	done, err = reg.IsProcessed(exp.Key())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	exp := testExport()
	require.NoError(t, reg.MarkProcessed(exp))
	require.NoError(t, reg.MarkProcessed(exp))

	entries, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestList(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	first := testExport()
	second := types.Export{Provider: types.ProviderGemini, Date: "2026-02-01"}
	require.NoError(t, reg.MarkProcessed(first))
	require.NoError(t, reg.MarkProcessed(second))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entry, ok := entries[first.Key()]
	require.True(t, ok, "missing entry for %s", first.Key())
	assert.Equal(t, types.ProviderClaude, entry.Provider)
	assert.Equal(t, "2026-01-15", entry.Date)
	assert.False(t, entry.ProcessedAt.IsZero(), "processed_at not recorded")
}

func TestRegistryPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	reg, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, reg.MarkProcessed(testExport()))
	require.NoError(t, reg.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	done, err := reopened.IsProcessed(testExport().Key())
	require.NoError(t, err)
	assert.True(t, done, "registry lost its records across reopen")
}
