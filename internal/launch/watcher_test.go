package launch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "launch.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[configurations]]\nname = \"a\"\nkind = \"delve\"\n"), 0o644))

	w, err := NewWatcher(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	reloaded := make(chan *File, 1)
	w.OnReload(func(file *File, err error) {
		if err == nil {
			select {
			case reloaded <- file:
			default:
			}
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("[[configurations]]\nname = \"b\"\nkind = \"python\"\n"), 0o644))

	select {
	case file := <-reloaded:
		assert.Equal(t, []string{"b"}, file.Names())
	case <-time.After(5 * time.Second):
		t.Fatal("reload not delivered")
	}
}

func TestWatcherReportsParseFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "launch.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[configurations]]\nname = \"a\"\nkind = \"delve\"\n"), 0o644))

	w, err := NewWatcher(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	failed := make(chan error, 1)
	w.OnReload(func(file *File, err error) {
		if err != nil {
			select {
			case failed <- err:
			default:
			}
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("configurations = ["), 0o644))

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("parse failure not delivered")
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launch.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
