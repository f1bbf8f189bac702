package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"fjacquet/sms-ledger/internal/fileutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "export.json")
	require.NoError(t, os.WriteFile(testFile, []byte("[]"), 0o600))

	assert.True(t, fileutils.FileExists(testFile))
	assert.False(t, fileutils.FileExists(filepath.Join(tmpDir, "nonexistent.json")))
	assert.False(t, fileutils.FileExists(tmpDir), "directories are not files")
}

func TestDirectoryExists(t *testing.T) {
	tmpDir := t.TempDir()

	assert.True(t, fileutils.DirectoryExists(tmpDir))
	assert.False(t, fileutils.DirectoryExists(filepath.Join(tmpDir, "missing")))
}

func TestEnsureDirectoryExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "nested")

	require.NoError(t, fileutils.EnsureDirectoryExists(dir))
	assert.True(t, fileutils.DirectoryExists(dir))
	require.NoError(t, fileutils.EnsureDirectoryExists(dir), "existing directory is fine")
	require.NoError(t, fileutils.EnsureDirectoryExists(""))
}

func TestListFilesWithExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"b.csv", "a.JSON", "notes.txt", filepath.Join("sub", "c.json")} {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	files, err := fileutils.ListFilesWithExtensions(tmpDir, ".json", ".csv")

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(tmpDir, "a.JSON"),
		filepath.Join(tmpDir, "b.csv"),
		filepath.Join(tmpDir, "sub", "c.json"),
	}, files)

	_, err = fileutils.ListFilesWithExtensions(filepath.Join(tmpDir, "missing"), ".json")
	assert.Error(t, err)
}
