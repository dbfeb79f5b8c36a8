package filesystem

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIOFSFixture(t *testing.T) *FileSystem {
	t.Helper()
	fsys := newTestFS(t)
	writeFile(t, fsys, "/a/x.go", "package a")
	writeFile(t, fsys, "/a/b/y.go", "package b")
	writeFile(t, fsys, "/a/b/c/z.txt", "zzz")
	writeFile(t, fsys, "/top.txt", "top")
	require.NoError(t, fsys.Mkdir("/empty", 0o755))
	return fsys
}

func TestFS_Conformance(t *testing.T) {
	t.Parallel()

	fsys := newIOFSFixture(t)

	err := fstest.TestFS(fsys.FS(), "a/x.go", "a/b/y.go", "a/b/c/z.txt", "top.txt", "empty")
	require.NoError(t, err)
}

func TestFS_Errors(t *testing.T) {
	t.Parallel()

	fsys := newIOFSFixture(t)
	view := fsys.FS()

	_, err := view.Open("/a/x.go")
	assert.ErrorIs(t, err, fs.ErrInvalid, "io/fs names are unrooted")
	_, err = view.Open("a/../a/x.go")
	assert.ErrorIs(t, err, fs.ErrInvalid)

	_, err = view.Open("a/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	var pe *fs.PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "a/missing", pe.Path, "errors name the io/fs path")

	_, err = fs.ReadFile(view, "a")
	assert.Equal(t, IsADirectory, CodeOf(err))
}

func TestFS_ReadHelpers(t *testing.T) {
	t.Parallel()

	fsys := newIOFSFixture(t)
	view := fsys.FS()

	data, err := fs.ReadFile(view, "a/b/c/z.txt")
	require.NoError(t, err)
	assert.Equal(t, "zzz", string(data))

	ents, err := fs.ReadDir(view, "a")
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "b", ents[0].Name())
	assert.Equal(t, "x.go", ents[1].Name())

	fi, err := fs.Stat(view, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "b", fi.Name())
	assert.True(t, fi.IsDir())

	var walked []string
	require.NoError(t, fs.WalkDir(view, ".", func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		walked = append(walked, p)
		return nil
	}))
	assert.Equal(t, []string{".", "a", "a/b", "a/b/c", "a/b/c/z.txt", "a/b/y.go", "a/x.go", "empty", "top.txt"}, walked)
}

func TestGlob(t *testing.T) {
	t.Parallel()

	fsys := newIOFSFixture(t)

	t.Run("DoubleStar", func(t *testing.T) {
		t.Parallel()
		got, err := fsys.Glob("/**/*.go")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/a/x.go", "/a/b/y.go"}, got)
	})

	t.Run("SingleLevel", func(t *testing.T) {
		t.Parallel()
		got, err := fsys.Glob("/*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"/top.txt"}, got)
	})

	t.Run("Alternatives", func(t *testing.T) {
		t.Parallel()
		got, err := fsys.Glob("/a/**/*.{txt,go}")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/a/x.go", "/a/b/y.go", "/a/b/c/z.txt"}, got)
	})

	t.Run("NoMatch", func(t *testing.T) {
		t.Parallel()
		got, err := fsys.Glob("/**/*.rs")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("BadPattern", func(t *testing.T) {
		t.Parallel()
		_, err := fsys.Glob("/a/[")
		assertCode(t, InvalidArgument, err)
	})
}

func TestGlob_Relative(t *testing.T) {
	t.Parallel()

	fsys := newIOFSFixture(t)
	require.NoError(t, fsys.Chdir("/a"))

	got, err := fsys.Glob("**/*.go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x.go", "b/y.go"}, got)
}
