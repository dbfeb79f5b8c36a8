package filesystem

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// A file renamed along n0 -> n1 -> ... -> nN only ever moves forward, so a
// reader scanning forward from n0 must find it unless some rename exposes a
// state where neither the old nor the new name exists.
func TestConcurrent_RenameIsAtomicForResolvers(t *testing.T) {
	t.Parallel()

	const steps = 500
	fsys := newTestFS(t)
	id := writeFile(t, fsys, "/d/n0", "x")
	dir := mustResolve(t, fsys, "/d")

	var done atomic.Bool
	var wg sync.WaitGroup
	wg.Go(func() {
		defer done.Store(true)
		for i := range steps {
			if err := fsys.RenameAt(dir, fmt.Sprintf("n%d", i), dir, fmt.Sprintf("n%d", i+1)); err != nil {
				t.Errorf("rename %d: %v", i, err)
				return
			}
		}
	})

	for range 4 {
		wg.Go(func() {
			for !done.Load() {
				found := false
				for k := 0; k <= steps && !found; k++ {
					got, err := fsys.Resolve(fmt.Sprintf("/d/n%d", k), ResolveOptions{MustExist: true})
					if err == nil {
						found = got == id
						continue
					}
					if CodeOf(err) != NotFound {
						t.Errorf("resolve: %v", err)
						return
					}
				}
				if !found {
					t.Error("neither the old nor the new name was visible")
					return
				}
			}
		})
	}
	wg.Wait()

	assert.Equal(t, id, mustResolve(t, fsys, fmt.Sprintf("/d/n%d", steps)))
	assert.Equal(t, 3, fsys.Len())
}

func TestConcurrent_CreateSameName(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	var created, exists atomic.Int32

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Go(func() {
			kind := KindFile
			if i%2 == 0 {
				kind = KindDir
			}
			_, err := fsys.CreateAt(RootID, "same", kind, CreateOptions{})
			switch CodeOf(err) {
			case 0:
				created.Add(1)
			case AlreadyExists:
				exists.Add(1)
			default:
				t.Errorf("create: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "exactly one creator wins")
	assert.Equal(t, int32(31), exists.Load())
	assert.Equal(t, 2, fsys.Len())
}

func TestConcurrent_OpenCreateSharesOneFile(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	ids := make([]ID, 16)

	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			f, err := fsys.OpenFile("/shared", os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				return err
			}
			ids[i] = f.ID()
			_, err = f.WriteAt([]byte{byte('a' + i)}, int64(i))
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "racing O_CREATE opens end up on the same node")
	}
	assert.Equal(t, "abcdefghijklmnop", readAll(t, fsys, "/shared"))
}

func TestConcurrent_OppositeCrossDirectoryRenames(t *testing.T) {
	t.Parallel()

	const perDir = 50
	fsys := newTestFS(t)
	for i := range perDir {
		writeFile(t, fsys, fmt.Sprintf("/a/from-a-%d", i), "a")
		writeFile(t, fsys, fmt.Sprintf("/b/from-b-%d", i), "b")
	}
	a, b := mustResolve(t, fsys, "/a"), mustResolve(t, fsys, "/b")

	var g errgroup.Group
	for i := range perDir {
		g.Go(func() error {
			name := fmt.Sprintf("from-a-%d", i)
			return fsys.RenameAt(a, name, b, name)
		})
		g.Go(func() error {
			name := fmt.Sprintf("from-b-%d", i)
			return fsys.RenameAt(b, name, a, name)
		})
	}
	require.NoError(t, g.Wait(), "lock ordering keeps opposite moves from deadlocking")

	na, err := fsys.CountEntries("/a")
	require.NoError(t, err)
	nb, err := fsys.CountEntries("/b")
	require.NoError(t, err)
	assert.Equal(t, perDir, na)
	assert.Equal(t, perDir, nb)
	for i := range perDir {
		assert.Equal(t, "b", readAll(t, fsys, fmt.Sprintf("/a/from-b-%d", i)))
	}
}

// Moving a into b while b moves into a would build a cycle cut off from the
// root. At most one of the two may win.
func TestConcurrent_CyclicRenameRace(t *testing.T) {
	t.Parallel()

	for i := range 50 {
		fsys := newTestFS(t)
		require.NoError(t, fsys.MkdirAll("/p/a", 0o755))
		require.NoError(t, fsys.Mkdir("/p/b", 0o755))

		var errA, errB error
		var wg sync.WaitGroup
		wg.Go(func() { errA = fsys.Rename("/p/a", "/p/b/a") })
		wg.Go(func() { errB = fsys.Rename("/p/b", "/p/a/b") })
		wg.Wait()

		require.False(t, errA == nil && errB == nil, "iteration %d: both moves succeeded", i)
		for _, err := range []error{errA, errB} {
			if err != nil {
				assert.Contains(t, []Code{NotFound, CrossDeviceOrCyclicMove}, CodeOf(err), "iteration %d: %v", i, err)
			}
		}

		tree, err := fsys.Snapshot("/p")
		require.NoError(t, err)
		assert.Equal(t, 3, countNodes(tree), "iteration %d: every directory is still reachable", i)
	}
}

func countNodes(tree *TreeNode) int {
	n := 1
	for _, c := range tree.Children {
		n += countNodes(c)
	}
	return n
}

func TestConcurrent_UnlinkWhileOpen(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	writeFile(t, fsys, "/f", "payload")

	handles := make([]*File, 8)
	for i := range handles {
		f, err := fsys.Open("/f")
		require.NoError(t, err)
		handles[i] = f
	}

	var g errgroup.Group
	g.Go(func() error { return fsys.Remove("/f") })
	for _, f := range handles {
		g.Go(func() error {
			buf := make([]byte, 7)
			if _, err := f.ReadAt(buf, 0); err != nil {
				return err
			}
			if string(buf) != "payload" {
				return fmt.Errorf("read %q", buf)
			}
			return f.Close()
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, fsys.Len(), "the last close frees the unlinked node")
	_, err := fsys.Stat("/f")
	assertCode(t, NotFound, err)
}

func TestConcurrent_MixedWorkload(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t)
	require.NoError(t, fsys.Mkdir("/work", 0o755))

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			base := fmt.Sprintf("/work/w%d", w)
			if err := fsys.MkdirAll(base+"/sub", 0o755); err != nil {
				return err
			}
			for i := range 20 {
				p := fmt.Sprintf("%s/sub/f%d", base, i)
				if err := fsys.WriteFile(p, []byte(p), 0o644); err != nil {
					return err
				}
				if err := fsys.Rename(p, p+".done"); err != nil {
					return err
				}
				if _, err := fsys.ReadDir("/work"); err != nil {
					return err
				}
			}
			return fsys.RemoveAll(base)
		})
	}
	require.NoError(t, g.Wait())

	assert.True(t, fsys.IsEmptyDir("/work"))
	assert.Equal(t, 2, fsys.Len())
}
