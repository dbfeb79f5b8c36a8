package filesystem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newResolveFixture builds:
//
//	/a/b/f        "x"
//	/lnk       -> /a/b
//	/a/rel     -> b/f
//	/x         -> /x
//	/dangle    -> /dangling-target
func newResolveFixture(t *testing.T) (*FileSystem, map[string]ID) {
	t.Helper()
	fsys := newTestFS(t)
	ids := map[string]ID{}
	ids["f"] = writeFile(t, fsys, "/a/b/f", "x")
	require.NoError(t, fsys.Symlink("/a/b", "/lnk"))
	require.NoError(t, fsys.Symlink("b/f", "/a/rel"))
	require.NoError(t, fsys.Symlink("/x", "/x"))
	require.NoError(t, fsys.Symlink("/dangling-target", "/dangle"))
	for _, p := range []string{"/a", "/a/b", "/a/rel", "/x"} {
		id, err := fsys.Resolve(p, ResolveOptions{MustExist: true})
		require.NoError(t, err)
		ids[p] = id
	}
	return fsys, ids
}

func TestResolve(t *testing.T) {
	t.Parallel()

	fsys, ids := newResolveFixture(t)
	follow := ResolveOptions{FollowFinal: true, MustExist: true}
	nofollow := ResolveOptions{MustExist: true}

	tests := []struct {
		name string
		path string
		opts ResolveOptions
		want ID
		code Code
	}{
		{"Root", "/", follow, RootID, 0},
		{"EmptyIsCwd", "", follow, RootID, 0},
		{"DotDotAtRoot", "/../..", follow, RootID, 0},
		{"DotAndDotDot", "/a/./b/../b/f", follow, ids["f"], 0},
		{"RepeatedSeparators", "//a///b//f", follow, ids["f"], 0},
		{"TrailingSlashOnDir", "/a/b/", follow, ids["/a/b"], 0},
		{"TrailingSlashOnFile", "/a/b/f/", follow, 0, NotADirectory},
		{"ThroughFile", "/a/b/f/x", follow, 0, NotADirectory},
		{"DotOnFile", "/a/b/f/.", follow, 0, NotADirectory},
		{"MissingFinal", "/missing", nofollow, 0, NotFound},
		{"MissingIntermediate", "/missing/y", ResolveOptions{}, 0, NotFound},
		{"AbsoluteSymlinkMidPath", "/lnk/f", nofollow, ids["f"], 0},
		{"FinalSymlinkTrailingSlash", "/lnk/", nofollow, ids["/a/b"], 0},
		{"RelativeSymlinkFollowed", "/a/rel", follow, ids["f"], 0},
		{"RelativeSymlinkNotFollowed", "/a/rel", nofollow, ids["/a/rel"], 0},
		{"CycleFollowed", "/x", follow, 0, TooManyLinks},
		{"CycleMidPath", "/x/y", nofollow, 0, TooManyLinks},
		{"CycleNotFollowed", "/x", nofollow, ids["/x"], 0},
		{"DanglingFollowed", "/dangle", follow, 0, NotFound},
		{"DirAsFile", "/a", ResolveOptions{Kind: KindFile}, 0, IsADirectory},
		{"FileAsDir", "/a/b/f", ResolveOptions{Kind: KindDir}, 0, NotADirectory},
		{"SymlinkAsFile", "/a/rel", ResolveOptions{Kind: KindFile}, 0, OperationNotSupported},
		{"FollowedSymlinkAsFile", "/a/rel", ResolveOptions{FollowFinal: true, Kind: KindFile}, ids["f"], 0},
		{"SymlinkKind", "/a/rel", ResolveOptions{Kind: KindSymlink}, ids["/a/rel"], 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := fsys.Resolve(tt.path, tt.opts)
			if tt.code != 0 {
				assertCode(t, tt.code, err)
				assert.Equal(t, ID(0), id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestResolve_MissingFinalWithoutMustExist(t *testing.T) {
	t.Parallel()

	fsys, _ := newResolveFixture(t)

	id, err := fsys.Resolve("/a/new", ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, ID(0), id, "a missing final entry under an existing parent is not an error")

	id, err = fsys.Resolve("/dangle", ResolveOptions{FollowFinal: true})
	require.NoError(t, err)
	assert.Equal(t, ID(0), id, "a dangling final symlink names its missing target")
}

func TestResolve_ErrorCarriesPath(t *testing.T) {
	t.Parallel()

	fsys, _ := newResolveFixture(t)

	_, err := fsys.Resolve("/x", ResolveOptions{FollowFinal: true})

	var pe *PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "resolve", pe.Op)
	assert.Equal(t, "/x", pe.Path)
	assert.ErrorIs(t, err, TooManyLinks)
}

func TestResolve_Relative(t *testing.T) {
	t.Parallel()

	fsys, ids := newResolveFixture(t)
	require.NoError(t, fsys.Chdir("/a"))

	assert.Equal(t, ids["f"], mustResolve(t, fsys, "b/f"))
	assert.Equal(t, ids["f"], mustResolve(t, fsys, "rel"))
	assert.Equal(t, ids["/a"], mustResolve(t, fsys, "."))
	assert.Equal(t, RootID, mustResolve(t, fsys, ".."))
	assert.Equal(t, ids["/a"], mustResolve(t, fsys, ""))
}

func TestResolve_SymlinkExpansionLimit(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig()
	cfg.MaxSymlinkExpansions = 2
	fsys := newTestFSWithConfig(t, cfg)
	f := writeFile(t, fsys, "/f", "x")
	require.NoError(t, fsys.Symlink("/f", "/l1"))
	require.NoError(t, fsys.Symlink("l1", "/l2"))
	require.NoError(t, fsys.Symlink("/l2", "/l3"))

	assert.Equal(t, f, mustResolve(t, fsys, "/l2"), "two expansions are within the limit")
	_, err := fsys.Resolve("/l3", ResolveOptions{FollowFinal: true})
	assertCode(t, TooManyLinks, err, "a third expansion exceeds the limit")
}

func TestResolve_SearchPermission(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	writeFile(t, fsys, "/secret/file", "x")
	require.NoError(t, fsys.Chmod("/secret", 0o600))

	_, err := fsys.Resolve("/secret/file", ResolveOptions{MustExist: true})
	assertCode(t, PermissionDenied, err)
	_, err = fsys.Resolve("/secret/missing", ResolveOptions{})
	assertCode(t, PermissionDenied, err, "search permission is checked before the lookup")

	id, err := fsys.Resolve("/secret", ResolveOptions{MustExist: true})
	require.NoError(t, err, "the directory itself stays reachable")
	assert.NotZero(t, id)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig()
	cfg.CaseInsensitive = true
	fsys := newTestFSWithConfig(t, cfg)
	id := writeFile(t, fsys, "/Docs/Readme.MD", "hello")

	assert.Equal(t, id, mustResolve(t, fsys, "/DOCS/readme.md"))
	assertCode(t, AlreadyExists, fsys.Mkdir("/docs", 0o755))

	ents, err := fsys.ReadDir("/docs")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "Readme.MD", ents[0].Name(), "entries keep the spelling used at creation")
}

func TestResolve_CaseSensitiveByDefault(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	writeFile(t, fsys, "/Readme", "a")
	writeFile(t, fsys, "/readme", "b")

	assert.NotEqual(t, mustResolve(t, fsys, "/Readme"), mustResolve(t, fsys, "/readme"))
}
