package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLockConfig() *FileLockConfig {
	return &FileLockConfig{LockTimeout: 200 * time.Millisecond, LockRetry: 10 * time.Millisecond}
}

func TestNewFileLock(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLock("ws", dir, fastLockConfig())
	require.NoError(t, err)
	defer fl.Unlock()

	assert.True(t, fl.IsLocked())
	assert.FileExists(t, filepath.Join(dir, lockFileName))
}

func TestFileLock_SecondAcquireTimesOut(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileLock("ws", dir, fastLockConfig())
	require.NoError(t, err)
	defer first.Unlock()

	_, err = NewFileLock("ws", dir, fastLockConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another instance")
}

func TestFileLock_UnlockThenReacquire(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileLock("ws", dir, fastLockConfig())
	require.NoError(t, err)
	first.Unlock()
	first.Unlock()

	assert.False(t, first.IsLocked())
	assert.Zero(t, first.HeldDuration())

	second, err := NewFileLock("ws", dir, fastLockConfig())
	require.NoError(t, err)
	second.Unlock()
}

func TestCleanupStaleLocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(path, nil, 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, CleanupStaleLocks(dir, time.Minute, false))
	assert.FileExists(t, path)

	require.NoError(t, CleanupStaleLocks(dir, time.Minute, true))
	assert.NoFileExists(t, path)

	require.NoError(t, CleanupStaleLocks(dir, time.Minute, true))
}
