package filesystem

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Allocate(t *testing.T) {
	t.Parallel()

	s := newStore(512, zerolog.Nop())
	now := time.Unix(1700000000, 0)

	file := s.allocate(KindFile, 0o640, 1, 2, now, nil)
	dir := s.allocate(KindDir, 0o755, 1, 2, now, func(n *node) {
		n.parent.Store(uint64(file.id))
	})

	assert.Equal(t, ID(1), file.id)
	assert.Equal(t, ID(2), dir.id, "identities come from a monotonic counter")
	assert.Equal(t, 2, s.size())

	attr := file.CopyAttr()
	assert.Equal(t, uint64(1), attr.Ino)
	assert.Equal(t, uint32(1), attr.Nlink)
	assert.Equal(t, uint32(512), attr.Blksize)
	assert.Equal(t, uint32(0o640), attr.Mode&0o777)
	assert.Equal(t, now, attrTime(attr.Mtime, attr.Mtimensec))
	assert.Equal(t, now, file.birth)

	assert.Equal(t, uint32(2), dir.CopyAttr().Nlink)
	assert.Equal(t, file.id, dir.parentID(), "init runs before the node is published")

	got, ok := s.get(dir.id)
	require.True(t, ok)
	assert.Same(t, dir, got)
}

func TestStore_MutateAndRelease(t *testing.T) {
	t.Parallel()

	s := newStore(512, zerolog.Nop())
	n := s.allocate(KindFile, 0o644, 0, 0, time.Now(), nil)

	require.NoError(t, s.mutate(n, func(i *inode) {
		i.data = append(i.data, "abc"...)
		i.setSizeLocked(len(i.data))
	}))
	assert.Equal(t, uint64(3), n.CopyAttr().Size)

	assert.False(t, s.release(n), "a linked node is kept")

	n.attrMu.Lock()
	n.attr.Nlink = 0
	n.opens = 1
	n.attrMu.Unlock()
	assert.False(t, s.release(n), "an open node is kept")

	n.attrMu.Lock()
	n.opens = 0
	n.attrMu.Unlock()
	assert.True(t, s.release(n))
	assert.False(t, s.release(n), "a node is freed once")

	_, ok := s.get(n.id)
	assert.False(t, ok, "get after free fails")
	assert.ErrorIs(t, s.mutate(n, func(*inode) {}), NotFound)
	assert.Equal(t, 0, s.size())
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()

	s := newStore(512, zerolog.Nop())
	a := s.allocate(KindFile, 0o644, 0, 0, time.Now(), nil)
	s.allocate(KindDir, 0o755, 0, 0, time.Now(), nil)

	assert.Equal(t, 2, s.clear())
	assert.Equal(t, 0, s.size())
	assert.True(t, a.freed)

	b := s.allocate(KindFile, 0o644, 0, 0, time.Now(), nil)
	assert.Equal(t, ID(3), b.id, "identities are never reused")
}
