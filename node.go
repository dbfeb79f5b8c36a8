package filesystem

import (
	"io/fs"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// ID is the stable identity of a node. IDs are allocated from a monotonic
// counter and never reused within a FileSystem.
type ID uint64

// RootID is the identity of the root directory of every FileSystem.
const RootID ID = fuse.FUSE_ROOT_ID

// dirent is a directory entry. The map key holding it may be case folded,
// name keeps the spelling used at creation.
type dirent struct {
	name string
	id   ID
}

// inode holds the attributes and content shared by every directory entry
// linking to a node. Its lock is a leaf: never acquire another lock while
// holding it.
type inode struct {
	attrMu sync.RWMutex
	// Low-level fuse wire protocol attributes; Only access directly if
	// holding attrMu
	attr   fuse.Attr
	birth  time.Time
	data   []byte // regular files
	target string // symlinks
	opens  int    // open handles
	freed  bool   // removed from the arena
}

// node is an arena entry. Directory structure is guarded by mu; attributes by
// the embedded inode's attrMu.
type node struct {
	id   ID
	kind NodeKind

	mu       sync.RWMutex      // Protects the fields below
	children map[string]dirent // Directories only; keyed by folded name
	removed  bool              // Directory was unlinked; nothing may be created in it

	// Parent directory; directories only. Root points at itself.
	// Written under FileSystem.renameMu plus both parent locks.
	parent atomic.Uint64

	inode
}

func newNode(id ID, kind NodeKind) *node {
	n := &node{id: id, kind: kind}
	if kind == KindDir {
		n.children = make(map[string]dirent)
	}
	return n
}

// parentID returns the parent of a directory node.
func (n *node) parentID() ID {
	return ID(n.parent.Load())
}

// lookupLocked finds a child entry. Caller must hold n.mu.
func (n *node) lookupLocked(key string) (dirent, bool) {
	ent, ok := n.children[key]
	return ent, ok
}

// lookup finds a child entry under a brief read lock.
func (n *node) lookup(key string) (dirent, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lookupLocked(key)
}

// entries returns a name sorted snapshot of the directory.
func (n *node) entries() []dirent {
	n.mu.RLock()
	ents := make([]dirent, 0, len(n.children))
	for _, ent := range n.children {
		ents = append(ents, ent)
	}
	n.mu.RUnlock()
	sort.Slice(ents, func(i, j int) bool { return ents[i].name < ents[j].name })
	return ents
}

// entryName returns the spelling of the entry pointing at id.
func (n *node) entryName(id ID) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ent := range n.children {
		if ent.id == id {
			return ent.name, true
		}
	}
	return "", false
}

// isEmptyLocked reports whether a directory has no entries. Caller must hold n.mu.
func (n *node) isEmptyLocked() bool {
	return len(n.children) == 0
}

/* inode helpers; callers hold attrMu as noted */

// CopyAttr returns a thread-safe copy of the inode's attributes
func (i *inode) CopyAttr() fuse.Attr {
	i.attrMu.RLock()
	defer i.attrMu.RUnlock()
	return i.attr
}

// permLocked returns the permission bits. Caller must hold attrMu.
func (i *inode) permLocked() fs.FileMode {
	return fs.FileMode(i.attr.Mode) & fs.ModePerm
}

// touchLocked records a change at now, also bumping mtime when modified is set.
// Caller must hold attrMu for writing.
func (i *inode) touchLocked(now time.Time, modified bool) {
	if modified {
		setTimes(&i.attr, nil, &now, &now)
		return
	}
	setTimes(&i.attr, nil, nil, &now)
}

// setSizeLocked keeps Size and Blocks in line with the content length.
func (i *inode) setSizeLocked(size int) {
	i.attr.Size = uint64(size)
	i.attr.Blocks = (i.attr.Size + 511) / 512
}

func setTimes(attr *fuse.Attr, atime, mtime, ctime *time.Time) {
	if atime != nil {
		attr.Atime = uint64(atime.Unix())
		attr.Atimensec = uint32(atime.Nanosecond())
	}
	if mtime != nil {
		attr.Mtime = uint64(mtime.Unix())
		attr.Mtimensec = uint32(mtime.Nanosecond())
	}
	if ctime != nil {
		attr.Ctime = uint64(ctime.Unix())
		attr.Ctimensec = uint32(ctime.Nanosecond())
	}
}

func attrTime(sec uint64, nsec uint32) time.Time {
	return time.Unix(int64(sec), int64(nsec))
}

// foldName returns the map key for name.
func foldName(name string, caseInsensitive bool) string {
	if caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// validName reports whether name may be used as a directory entry.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}
