package artifacts

import (
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPayloadDecode(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}

	got, err := Bytes(raw).Decode()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	got, err = EncodedText(base64.StdEncoding.EncodeToString(raw)).Decode()
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = EncodedText("not-base64!!").Decode()
	require.Error(t, err)
}

func TestSaveAndCleanup(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := store.Save(Bytes([]byte("snapshot")))
	require.NoError(t, err)
	require.FileExists(t, path)

	st := store.Stats()
	require.Equal(t, 1, st.Count)
	require.Equal(t, int64(len("snapshot")), st.TotalSizeBytes)

	require.True(t, store.Cleanup(path))
	require.NoFileExists(t, path)
	require.False(t, store.Cleanup(path), "second cleanup of same path is a no-op")
	require.Zero(t, store.Stats().Count)
}

func TestCleanupUntrackedPath(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.False(t, store.Cleanup("/nonexistent/foo.png"))
}

func TestCleanupAll(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := store.Save(Bytes([]byte{byte(i)}))
		require.NoError(t, err)
		paths = append(paths, p)
	}

	require.Equal(t, 3, store.CleanupAll())
	for _, p := range paths {
		require.NoFileExists(t, p)
	}
	require.Zero(t, store.Stats().Count)
}

func TestCleanupOlderThan(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	oldPath, err := store.Save(Bytes([]byte("old")))
	require.NoError(t, err)
	newPath, err := store.Save(Bytes([]byte("new")))
	require.NoError(t, err)

	// Age the first entry directly in the registry.
	store.mu.Lock()
	e := store.registry[oldPath]
	e.created = time.Now().Add(-2 * time.Hour)
	store.registry[oldPath] = e
	store.mu.Unlock()

	require.Equal(t, 1, store.CleanupOlderThan(time.Hour))
	require.NoFileExists(t, oldPath)
	require.FileExists(t, newPath)
}

func TestNewStoreAdoptsArtifactsFromPriorRuns(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir, nil)
	require.NoError(t, err)
	path, err := first.Save(Bytes([]byte("left behind")))
	require.NoError(t, err)

	// A fresh store over the same directory, as the clean command builds.
	second, err := NewStore(dir, nil)
	require.NoError(t, err)
	st := second.Stats()
	require.Equal(t, 1, st.Count)
	require.Equal(t, int64(len("left behind")), st.TotalSizeBytes)

	require.Equal(t, 1, second.CleanupAll(), "clean must remove artifacts from prior runs")
	require.NoFileExists(t, path)
}

func TestCleanupOlderThanCoversAdoptedArtifacts(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir, nil)
	require.NoError(t, err)
	oldPath, err := first.Save(Bytes([]byte("old")))
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	second, err := NewStore(dir, nil)
	require.NoError(t, err)
	newPath, err := second.Save(Bytes([]byte("new")))
	require.NoError(t, err)

	require.Equal(t, 1, second.CleanupOlderThan(time.Hour))
	require.NoFileExists(t, oldPath)
	require.FileExists(t, newPath)
}

func TestCleanupSurvivesExternallyDeletedFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := store.Save(Bytes([]byte("gone")))
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	require.True(t, store.Cleanup(path), "missing file still counts as cleaned")
}
