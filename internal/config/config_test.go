package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	t.Setenv("FILEOPS_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, "/tmp/xdg-data/Trash", cfg.TrashRoot)
	require.Equal(t, "/tmp/xdg-state/fileops/logs", cfg.LogDir)
	require.Equal(t, 1024*1024, cfg.ChunkSize)
	require.Equal(t, 100*time.Millisecond, cfg.ProgressInterval)
	require.Equal(t, "ask", cfg.ConflictDefault)
	require.Equal(t, DeleteToTrash, cfg.DeleteBehavior)
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fileops.yaml")
	content := []byte("chunk_size: 4096\nlog_max_files: 2\nfollow_symlinks: true\ncors_origins:\n  - http://a\n  - http://b\nconflict_default: rename\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("FILEOPS_CONFIG", path)
	t.Setenv("LOG_MAX_FILES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.ChunkSize)
	require.Equal(t, 7, cfg.LogMaxFiles)
	require.True(t, cfg.FollowSymlinks)
	require.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	require.Equal(t, "rename", cfg.ConflictDefault)
}

func TestValidate(t *testing.T) {
	t.Setenv("FILEOPS_CONFIG", "")

	base := source{}.build()
	require.NoError(t, base.Validate())

	t.Run("chunk size must be positive", func(t *testing.T) {
		cfg := *base
		cfg.ChunkSize = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("conflict default must be known", func(t *testing.T) {
		cfg := *base
		cfg.ConflictDefault = "merge"
		require.Error(t, cfg.Validate())
	})

	t.Run("delete behavior must be known", func(t *testing.T) {
		cfg := *base
		cfg.DeleteBehavior = "shred"
		require.Error(t, cfg.Validate())
	})

	t.Run("workspace root must be absolute", func(t *testing.T) {
		cfg := *base
		cfg.WorkspaceRoot = "relative/dir"
		require.Error(t, cfg.Validate())
	})
}
