package store

import (
	"os"
	"path/filepath"
	"testing"

	hearthErrors "github.com/harunnryd/hearth/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_OpensOncePerWorkspace(t *testing.T) {
	p := NewPool(t.TempDir(), RuntimeConfig{})
	defer p.Close()

	a, err := p.Worker("family")
	require.NoError(t, err)
	b, err := p.Worker("family")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = p.Worker("grandparents")
	require.NoError(t, err)

	assert.Equal(t, []string{"family", "grandparents"}, p.Workspaces())
	assert.NoError(t, p.Healthy())
}

func TestPool_Close(t *testing.T) {
	p := NewPool(t.TempDir(), RuntimeConfig{})

	w, err := p.Worker("family")
	require.NoError(t, err)
	p.Close()

	assert.False(t, w.IsLockHeld())
	_, err = p.Worker("family")
	assert.ErrorIs(t, err, ErrWorkerStopped)
}

func TestPool_RequiresWorkspace(t *testing.T) {
	p := NewPool(t.TempDir(), RuntimeConfig{})
	defer p.Close()

	_, err := p.Worker("")
	assert.ErrorIs(t, err, hearthErrors.ErrInvalidInput)
}

func TestPool_RejectsEscapingWorkspace(t *testing.T) {
	parent := t.TempDir()
	p := NewPool(filepath.Join(parent, "workspaces"), RuntimeConfig{})
	defer p.Close()

	for _, id := range []string{"../escaped", "a/b", "..", "family.bak", " family"} {
		_, err := p.Worker(id)
		assert.ErrorIs(t, err, hearthErrors.ErrInvalidInput, id)
	}

	_, err := os.Stat(filepath.Join(parent, "escaped"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, p.Workspaces())
}
