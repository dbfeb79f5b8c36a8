package filesystem

import (
	"io/fs"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Stat is a point in time snapshot of a node's metadata.
type Stat struct {
	ID        ID
	Kind      NodeKind
	Size      int64
	Mode      fs.FileMode // type bits plus permission bits
	Uid       uint32
	Gid       uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
	Nlink     uint32

	attr fuse.Attr
}

// Attr returns the snapshot in the layout of the FUSE wire protocol.
func (s *Stat) Attr() fuse.Attr {
	return s.attr
}

func statNode(n *node) Stat {
	n.attrMu.RLock()
	attr := n.attr
	birth := n.birth
	n.attrMu.RUnlock()
	return Stat{
		ID:        n.id,
		Kind:      n.kind,
		Size:      int64(attr.Size),
		Mode:      n.kind.fileMode() | fs.FileMode(attr.Mode)&fs.ModePerm,
		Uid:       attr.Uid,
		Gid:       attr.Gid,
		Atime:     attrTime(attr.Atime, attr.Atimensec),
		Mtime:     attrTime(attr.Mtime, attr.Mtimensec),
		Ctime:     attrTime(attr.Ctime, attr.Ctimensec),
		Birthtime: birth,
		Nlink:     attr.Nlink,
		attr:      attr,
	}
}

// StatID snapshots the metadata of node id.
func (fsys *FileSystem) StatID(id ID) (Stat, error) {
	n, err := fsys.get(id)
	if err != nil {
		return Stat{}, newError("stat", "", CodeOf(err))
	}
	return statNode(n), nil
}

// Stat describes the node p names, following a final symlink.
func (fsys *FileSystem) Stat(p string) (*FileInfo, error) {
	return fsys.statPath("stat", p, true)
}

// Lstat is Stat without following a final symlink.
func (fsys *FileSystem) Lstat(p string) (*FileInfo, error) {
	return fsys.statPath("lstat", p, false)
}

func (fsys *FileSystem) statPath(op, p string, follow bool) (*FileInfo, error) {
	n, name, err := fsys.lookupPath(p, follow)
	if err != nil {
		return nil, newError(op, p, CodeOf(err))
	}
	return &FileInfo{name: name, stat: statNode(n)}, nil
}

// lookupPath resolves p to an existing node and the name it is known by.
func (fsys *FileSystem) lookupPath(p string, follow bool) (*node, string, error) {
	res, err := fsys.walk(p, follow)
	if err != nil {
		return nil, "", err
	}
	if res.id == 0 {
		return nil, "", NotFound
	}
	n, err := fsys.get(res.id)
	if err != nil {
		return nil, "", err
	}
	if segs := splitPath(p); len(segs) > 0 {
		if last := segs[len(segs)-1]; last != "." && last != ".." {
			return n, last, nil
		}
	}
	return n, fsys.baseName(res), nil
}

// baseName is the entry name a resolution ended on. A final "." or ".."
// takes the name of the directory it lands on. A path whose last segment is
// a followed symlink keeps the link's name.
func (fsys *FileSystem) baseName(res resolution) string {
	if res.name != "" {
		return res.name
	}
	if res.id == RootID {
		return "/"
	}
	if parent, ok := fsys.store.get(res.parent); ok {
		if name, ok := parent.entryName(res.id); ok {
			return name
		}
	}
	return "."
}

// Chmod sets the permission bits of the node p names. Only the owner may
// change them while permissions are enforced.
func (fsys *FileSystem) Chmod(p string, mode fs.FileMode) error {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = fsys.chmod(n, mode)
	}
	if err != nil {
		return newError("chmod", p, CodeOf(err))
	}
	fsys.logger("Chmod").Debug().Str("path", p).Stringer("mode", mode.Perm()).Msg("Changed mode")
	return nil
}

func (fsys *FileSystem) chmod(n *node, mode fs.FileMode) error {
	if !fsys.owns(n) {
		return PermissionDenied
	}
	now := fsys.now()
	return fsys.store.mutate(n, func(i *inode) {
		i.attr.Mode = n.kind.typeBits() | uint32(mode.Perm())
		i.touchLocked(now, false)
	})
}

// Chown changes the owner and group of the node p names. A negative id
// leaves that field unchanged.
func (fsys *FileSystem) Chown(p string, uid, gid int) error {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil && !fsys.owns(n) {
		err = PermissionDenied
	}
	if err != nil {
		return newError("chown", p, CodeOf(err))
	}
	now := fsys.now()
	err = fsys.store.mutate(n, func(i *inode) {
		if uid >= 0 {
			i.attr.Uid = uint32(uid)
		}
		if gid >= 0 {
			i.attr.Gid = uint32(gid)
		}
		i.touchLocked(now, false)
	})
	if err != nil {
		return newError("chown", p, CodeOf(err))
	}
	fsys.logger("Chown").Debug().Str("path", p).Int("uid", uid).Int("gid", gid).Msg("Changed owner")
	return nil
}

// Chtimes sets the access and modification times of the node p names.
// A zero time leaves the corresponding field unchanged.
func (fsys *FileSystem) Chtimes(p string, atime, mtime time.Time) error {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil && !fsys.owns(n) {
		err = PermissionDenied
	}
	if err != nil {
		return newError("chtimes", p, CodeOf(err))
	}
	var at, mt *time.Time
	if !atime.IsZero() {
		at = &atime
	}
	if !mtime.IsZero() {
		mt = &mtime
	}
	now := fsys.now()
	err = fsys.store.mutate(n, func(i *inode) {
		setTimes(&i.attr, at, mt, &now)
	})
	if err != nil {
		return newError("chtimes", p, CodeOf(err))
	}
	return nil
}

// Truncate resizes the regular file p names.
func (fsys *FileSystem) Truncate(p string, size int64) error {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil && n.kind == KindFile {
		err = fsys.access(n, accessWrite)
	}
	if err == nil {
		err = fsys.truncate(n, size)
	}
	if err != nil {
		return newError("truncate", p, CodeOf(err))
	}
	return nil
}

// FileInfo implements fs.FileInfo over a Stat.
type FileInfo struct {
	name string
	stat Stat
}

func (fi *FileInfo) Name() string       { return fi.name }
func (fi *FileInfo) Size() int64        { return fi.stat.Size }
func (fi *FileInfo) Mode() fs.FileMode  { return fi.stat.Mode }
func (fi *FileInfo) ModTime() time.Time { return fi.stat.Mtime }
func (fi *FileInfo) IsDir() bool        { return fi.stat.Kind == KindDir }

// Sys returns the underlying *Stat.
func (fi *FileInfo) Sys() any { return &fi.stat }

// Stat returns the full metadata snapshot.
func (fi *FileInfo) Stat() Stat { return fi.stat }

// DirEntry implements fs.DirEntry. Its info is captured when the directory
// is listed.
type DirEntry struct {
	info *FileInfo
}

func (d DirEntry) Name() string               { return d.info.name }
func (d DirEntry) IsDir() bool                { return d.info.IsDir() }
func (d DirEntry) Type() fs.FileMode          { return d.info.Mode().Type() }
func (d DirEntry) Info() (fs.FileInfo, error) { return d.info, nil }

// entryInfo snapshots the node behind a directory entry.
func (fsys *FileSystem) entryInfo(ent dirent) (*FileInfo, error) {
	n, err := fsys.get(ent.id)
	if err != nil {
		return nil, err
	}
	return &FileInfo{name: ent.name, stat: statNode(n)}, nil
}
