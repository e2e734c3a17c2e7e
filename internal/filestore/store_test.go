package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/specialistvlad/paramgrid/internal/statestore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ statestore.Store = (*Store)(nil)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) statestore.Store {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStore_FileLayout(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "door", storetest.Sample("door")))

	data, err := os.ReadFile(filepath.Join(dir, "door.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "tab: door")

	// Foreign files are not listed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o750))
	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"door"}, names)
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("values: [1"), 0o600))

	_, err = s.Load(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, statestore.ErrNotFound)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
