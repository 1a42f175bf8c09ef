package kv

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStores builds one instance of every backend in a temp directory.
func newTestStores(t *testing.T, opts Options) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	badger, err := NewBadgerStore(filepath.Join(t.TempDir(), "badger"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"badger": badger,
		"memory": NewMemoryStore(opts),
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, st := range newTestStores(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Set("k", "v1"))
			v, ok, err := st.Get("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v1", v)

			// Overwrite
			require.NoError(t, st.Set("k", "v2"))
			v, _, err = st.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", v)

			require.NoError(t, st.Delete("k"))
			_, ok, err = st.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting an absent key is fine
			assert.NoError(t, st.Delete("k"))
		})
	}
}

func TestStore_KeysPrefix(t *testing.T) {
	for name, st := range newTestStores(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Set("app/users", "{}"))
			require.NoError(t, st.Set("app/videos", "{}"))
			require.NoError(t, st.Set("other", "x"))

			keys, err := st.Keys("app/")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"app/users", "app/videos"}, keys)

			keys, err = st.Keys("nomatch")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStore_Quota(t *testing.T) {
	for name, st := range newTestStores(t, Options{MaxValueSize: 8}) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Set("small", "12345678"))

			err := st.Set("big", "123456789")
			require.ErrorIs(t, err, ErrQuotaExceeded)

			// Rejected writes must not clobber anything
			_, ok, err := st.Get("big")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSQLiteStore_LikeEscaping(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), Options{})
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Set("a_b/one", "1"))
	require.NoError(t, st.Set("axb/two", "2"))

	// "_" in the prefix must match literally, not as a LIKE wildcard
	keys, err := st.Keys("a_b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b/one"}, keys)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	st, err := NewSQLiteStore(path, Options{})
	require.NoError(t, err)
	require.NoError(t, st.Set("k", "v"))
	require.NoError(t, st.Close())

	st, err = NewSQLiteStore(path, Options{})
	require.NoError(t, err)
	defer st.Close()

	v, ok, err := st.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
