package safety

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBackup(t *testing.T) *Backup {
	t.Helper()
	root := t.TempDir()
	b := NewBackup(
		filepath.Join(root, "docs"),
		filepath.Join(root, "_backups"),
		filepath.Join(root, "_deleted_items"),
		zap.NewNop(),
	)
	b.now = func() time.Time { return time.Date(2026, 2, 20, 8, 30, 15, 0, time.UTC) }
	return b
}

func TestBackup_CreateBackup(t *testing.T) {
	b := newTestBackup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(b.DocsDir, "posts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b.DocsDir, "index.html"), []byte("<html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b.DocsDir, "posts", "a.html"), []byte("a"), 0o644))

	path, err := b.CreateBackup()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.BackupDir, "backup_20260220_083015"), path)

	data, err := os.ReadFile(filepath.Join(path, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))
	assert.FileExists(t, filepath.Join(path, "posts", "a.html"))
}

func TestBackup_CreateBackupWithoutDocs(t *testing.T) {
	b := newTestBackup(t)

	path, err := b.CreateBackup()
	require.NoError(t, err)
	assert.DirExists(t, path)

	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackup_SafeDelete(t *testing.T) {
	b := newTestBackup(t)
	require.NoError(t, os.MkdirAll(b.DocsDir, 0o755))
	src := filepath.Join(b.DocsDir, "old.html")
	require.NoError(t, os.WriteFile(src, []byte("old"), 0o644))

	dest, err := b.SafeDelete(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.DeletedDir, "20260220_083015_old.html"), dest)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dest)

	t.Run("missing file", func(t *testing.T) {
		dest, err := b.SafeDelete(filepath.Join(b.DocsDir, "nope.html"))
		require.NoError(t, err)
		assert.Empty(t, dest)
	})
}

func TestBackup_RecoveryCommands(t *testing.T) {
	b := newTestBackup(t)
	var buf bytes.Buffer
	b.RecoveryCommands(&buf)
	assert.Contains(t, buf.String(), "backup_[latest timestamp]")
	assert.Contains(t, buf.String(), "git checkout HEAD --")
}
