package file_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/safe-uploader/internal/storage/file"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestStorage_ExistsAndSize(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/a.txt", []byte("hello"), 0o644))
	s := file.NewStorage(fs)

	assert.True(t, s.Exists("/in/a.txt"))
	assert.False(t, s.Exists("/in/missing.txt"))

	assert.True(t, s.IsFile("/in/a.txt"))
	assert.True(t, s.Exists("/in"))
	assert.False(t, s.IsFile("/in"))
	assert.False(t, s.IsFile("/in/missing.txt"))

	size, err := s.Size("/in/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = s.Size("/in/missing.txt")
	require.ErrorIs(t, err, file.ErrFileNotFound)

	_, err = s.Size("/in")
	require.ErrorIs(t, err, file.ErrIsDirectory)
}

func TestStorage_Move(t *testing.T) {
	t.Parallel()

	t.Run("in memory", func(t *testing.T) {
		t.Parallel()
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/tmp/src", []byte("payload"), 0o644))
		s := file.NewStorage(fs)

		require.NoError(t, s.EnsureParentDir("/dst/deep/file.bin"))
		require.NoError(t, s.Move("/tmp/src", "/dst/deep/file.bin"))

		assert.False(t, s.Exists("/tmp/src"))
		data, err := afero.ReadFile(fs, "/dst/deep/file.bin")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("on disk", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		s := file.NewStorage(nil)

		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "out", "dst.txt")
		require.NoError(t, afero.WriteFile(s.Fs(), src, []byte("x"), 0o644))
		require.NoError(t, s.EnsureParentDir(dst))

		require.NoError(t, s.Move(src, dst))
		assert.True(t, s.Exists(dst))
		assert.False(t, s.Exists(src))
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		s := file.NewStorage(afero.NewMemMapFs())
		require.Error(t, s.Move("/nope", "/dst"))
	})
}

func TestStorage_MimeType(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.png", pngHeader, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("just some text"), 0o644))
	s := file.NewStorage(fs)

	mt, err := s.MimeType("/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = s.MimeType("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mt)

	_, err = s.MimeType("/missing")
	require.Error(t, err)
}

func TestStorage_SaveAndDelete(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	s := file.NewStorage(fs)

	path, n, err := s.Save("/received", "upload-1", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "/received/upload-1", path)
	assert.Equal(t, int64(7), n)

	rc, err := s.Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content", string(data))

	wc, err := s.Create("/received/other")
	require.NoError(t, err)
	_, err = io.Copy(wc, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	require.NoError(t, s.Delete(path))
	assert.False(t, s.Exists(path))
	assert.True(t, s.Exists("/received/other"))
}

func TestStorage_SaveReadError(t *testing.T) {
	t.Parallel()
	s := file.NewStorage(afero.NewMemMapFs())

	path, _, err := s.Save("/received", "upload-2", iotest.ErrReader(errors.New("connection reset")))
	require.Error(t, err)
	assert.Equal(t, "/received/upload-2", path)

	require.NoError(t, s.Delete(path))
	assert.False(t, s.Exists(path))
}
