package filesystem

import (
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// store is the node arena. It exclusively owns every node; everything else
// refers to nodes by ID.
type store struct {
	nodes     *xsync.Map[ID, *node] // maps identities to live nodes
	lastID    atomic.Uint64         // Last ID assigned; incremented when new nodes are allocated
	blockSize uint32
	logger    zerolog.Logger
}

func newStore(blockSize uint32, logger zerolog.Logger) *store {
	return &store{
		nodes:     xsync.NewMap[ID, *node](),
		blockSize: blockSize,
		logger:    logger,
	}
}

// allocate creates and registers a node with a fresh identity. init, if not
// nil, runs before the node becomes visible to get.
// Directories start with the POSIX link count of 2 ("." plus the parent entry).
func (s *store) allocate(kind NodeKind, perm fs.FileMode, uid, gid uint32, now time.Time, init func(n *node)) *node {
	id := ID(s.lastID.Add(1))
	n := newNode(id, kind)

	nlink := uint32(1)
	if kind == KindDir {
		nlink = 2
	}
	n.attr = fuse.Attr{
		Ino:   uint64(id),
		Mode:  kind.typeBits() | uint32(perm.Perm()),
		Nlink: nlink,
		Owner: fuse.Owner{
			Uid: uid,
			Gid: gid,
		},
		Blksize: s.blockSize, // preferred size for fs ops
	}
	setTimes(&n.attr, &now, &now, &now)
	n.birth = now
	if init != nil {
		init(n)
	}

	s.nodes.Store(id, n)
	s.logger.Trace().Uint64("id", uint64(id)).Stringer("kind", kind).Msg("Allocated node")
	return n
}

// get returns the live node for id.
func (s *store) get(id ID) (*node, bool) {
	return s.nodes.Load(id)
}

// mutate applies fn to n's attributes under the attribute lock. It fails
// with NotFound once n was freed.
func (s *store) mutate(n *node, fn func(i *inode)) error {
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	if n.freed {
		return NotFound
	}
	fn(&n.inode)
	return nil
}

// release frees n once nothing references it: no directory entry and no open
// handle. Otherwise the node lives on as unlinked-but-open and the last Close
// calls release again.
func (s *store) release(n *node) bool {
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	if n.freed || n.attr.Nlink != 0 || n.opens != 0 {
		return false
	}
	n.freed = true
	s.nodes.Delete(n.id)
	s.logger.Trace().Uint64("id", uint64(n.id)).Msg("Freed node")
	return true
}

// clear frees every node regardless of references.
func (s *store) clear() int {
	freed := 0
	s.nodes.Range(func(id ID, n *node) bool {
		n.attrMu.Lock()
		n.freed = true
		n.attrMu.Unlock()
		s.nodes.Delete(id)
		freed++
		return true
	})
	return freed
}

func (s *store) size() int {
	return s.nodes.Size()
}
