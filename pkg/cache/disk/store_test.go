package disk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithRoot(filepath.Join(t.TempDir(), "VideoCache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// commitEntry writes data through the temp-then-commit flow and returns the
// final path.
func commitEntry(t *testing.T, s *Store, name string, data []byte) string {
	t.Helper()
	f, err := s.TempFile()
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	final := filepath.Join(s.Root(), name)
	require.NoError(t, s.Commit(f.Name(), final))
	return final
}

// ============================================================================
// Store Tests
// ============================================================================

func TestNew(t *testing.T) {
	t.Run("RequiresRoot", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("DirectoryCreatedLazily", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "VideoCache")
		s, err := NewWithRoot(root)
		require.NoError(t, err)

		_, statErr := os.Stat(root)
		assert.True(t, os.IsNotExist(statErr), "root should not exist before first use")

		_, err = s.TempFile()
		require.NoError(t, err)

		info, statErr := os.Stat(root)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	})
}

func TestCommit(t *testing.T) {
	t.Run("CommittedEntryIsComplete", func(t *testing.T) {
		s := newTestStore(t)
		data := []byte("full video payload")

		final := commitEntry(t, s, "entry.mp4", data)

		assert.True(t, s.Exists(final))
		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("TempFileNotVisibleAtFinalPath", func(t *testing.T) {
		s := newTestStore(t)

		f, err := s.TempFile()
		require.NoError(t, err)
		defer s.Discard(f.Name())
		_, err = f.Write([]byte("partial"))
		require.NoError(t, err)

		final := filepath.Join(s.Root(), "entry.mp4")
		assert.False(t, s.Exists(final), "partial download must not be a cache hit")
	})

	t.Run("FailedCommitRemovesTemp", func(t *testing.T) {
		s := newTestStore(t)

		f, err := s.TempFile()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		// Rename into a path whose parent does not exist fails.
		err = s.Commit(f.Name(), filepath.Join(s.Root(), "missing", "entry.mp4"))
		require.Error(t, err)

		_, statErr := os.Stat(f.Name())
		assert.True(t, os.IsNotExist(statErr), "temp file should be cleaned up")
	})
}

func TestExists(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Exists(filepath.Join(s.Root(), "nope.mp4")))

	final := commitEntry(t, s, "yes.mp4", []byte("x"))
	assert.True(t, s.Exists(final))

	require.NoError(t, s.Remove(final))
	assert.False(t, s.Exists(final))
}

func TestDiscard(t *testing.T) {
	s := newTestStore(t)

	f, err := s.TempFile()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Discard(f.Name()))
	require.NoError(t, s.Discard(f.Name()), "discard is idempotent")
}

func TestEntries(t *testing.T) {
	s := newTestStore(t)

	paths, err := s.Entries()
	require.NoError(t, err)
	assert.Empty(t, paths)

	a := commitEntry(t, s, "a.mp4", []byte("a"))
	b := commitEntry(t, s, "b.mp4", []byte("b"))

	paths, err = s.Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, paths)
}

func TestWritable(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Writable())
}

func TestClose(t *testing.T) {
	t.Run("SweepsTempFiles", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "VideoCache")
		s, err := NewWithRoot(root)
		require.NoError(t, err)

		f, err := s.TempFile()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		require.NoError(t, s.Close())

		_, statErr := os.Stat(f.Name())
		assert.True(t, os.IsNotExist(statErr), "leftover temp files swept on close")
	})

	t.Run("OperationsFailAfterClose", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Close())

		_, err := s.TempFile()
		assert.ErrorIs(t, err, ErrStoreClosed)
		assert.ErrorIs(t, s.Commit("a", "b"), ErrStoreClosed)
	})
}

// ============================================================================
// Watcher Tests
// ============================================================================

func TestWatcher(t *testing.T) {
	s := newTestStore(t)
	final := commitEntry(t, s, "watched.mp4", []byte("v"))

	removed := make(chan string, 1)
	w, err := Watch(s, func(path string) {
		select {
		case removed <- path:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Remove(final))

	select {
	case got := <-removed:
		assert.Equal(t, final, got)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report external removal")
	}
}
