package filesystem

import (
	"bytes"
	"io/fs"
	"time"

	"github.com/zxul767/filesystem/internal/util"
)

// CreateOptions describes a node created by CreateAt. Nil fields fall back
// to the filesystem configuration.
type CreateOptions struct {
	Perm   *fs.FileMode // requested permission bits, before the umask
	Uid    *uint32
	Gid    *uint32
	Target string // symlinks: the stored target path
	Data   []byte // regular files: initial content, copied
}

// CreateAt inserts a new entry name into directory parent and returns the
// identity of the node behind it.
func (fsys *FileSystem) CreateAt(parent ID, name string, kind NodeKind, opts CreateOptions) (ID, error) {
	logger := fsys.logger("CreateAt")
	id, err := fsys.create(parent, name, kind, opts)
	if err != nil {
		logger.Debug().Err(err).Uint64("parent", uint64(parent)).Str("name", name).Msg("Create failed")
		return 0, newError("create", name, CodeOf(err))
	}
	logger.Debug().Uint64("parent", uint64(parent)).Str("name", name).Stringer("kind", kind).Uint64("id", uint64(id)).Msg("Created node")
	return id, nil
}

func (fsys *FileSystem) create(parent ID, name string, kind NodeKind, opts CreateOptions) (ID, error) {
	if !validName(name) {
		return 0, InvalidName
	}
	var perm fs.FileMode
	switch kind {
	case KindFile:
		perm = fsys.cfg.DefaultFileMode
	case KindDir:
		perm = fsys.cfg.DefaultDirMode
	case KindSymlink:
		if opts.Target == "" {
			return 0, InvalidArgument
		}
		perm = fs.ModePerm
	default:
		return 0, InvalidArgument
	}
	if opts.Perm != nil {
		perm = *opts.Perm
	}
	if kind != KindSymlink {
		perm = perm.Perm() &^ fsys.cfg.Umask
	}

	dir, err := fsys.getDir(parent)
	if err != nil {
		return 0, err
	}
	if err := fsys.access(dir, accessWrite|accessExec); err != nil {
		return 0, err
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.removed {
		return 0, NotFound
	}
	key := foldName(name, fsys.cfg.CaseInsensitive)
	if _, ok := dir.lookupLocked(key); ok {
		return 0, AlreadyExists
	}

	now := fsys.now()
	uid := util.ValueOrDefault(opts.Uid, fsys.cfg.Uid)
	gid := util.ValueOrDefault(opts.Gid, fsys.cfg.Gid)
	n := fsys.store.allocate(kind, perm, uid, gid, now, func(n *node) {
		switch kind {
		case KindFile:
			n.data = bytes.Clone(opts.Data)
			n.setSizeLocked(len(n.data))
		case KindSymlink:
			n.target = opts.Target
			n.setSizeLocked(len(opts.Target))
		case KindDir:
			n.parent.Store(uint64(parent))
		}
	})
	dir.children[key] = dirent{name: name, id: n.id}

	dir.attrMu.Lock()
	if kind == KindDir {
		dir.attr.Nlink++
	}
	dir.touchLocked(now, true)
	dir.attrMu.Unlock()
	return n.id, nil
}

// UnlinkAt removes the entry name from directory parent. Directories may be
// unlinked only while empty. The node is freed once it has no entries left
// and no open handles.
func (fsys *FileSystem) UnlinkAt(parent ID, name string) error {
	if err := fsys.removeEntry(parent, name, false); err != nil {
		fsys.logger("UnlinkAt").Debug().Err(err).Uint64("parent", uint64(parent)).Str("name", name).Msg("Unlink failed")
		return newError("unlink", name, CodeOf(err))
	}
	fsys.logger("UnlinkAt").Debug().Uint64("parent", uint64(parent)).Str("name", name).Msg("Unlinked entry")
	return nil
}

// RmdirAt removes the empty directory name from directory parent.
func (fsys *FileSystem) RmdirAt(parent ID, name string) error {
	if err := fsys.removeEntry(parent, name, true); err != nil {
		fsys.logger("RmdirAt").Debug().Err(err).Uint64("parent", uint64(parent)).Str("name", name).Msg("Rmdir failed")
		return newError("rmdir", name, CodeOf(err))
	}
	fsys.logger("RmdirAt").Debug().Uint64("parent", uint64(parent)).Str("name", name).Msg("Removed directory")
	return nil
}

func (fsys *FileSystem) removeEntry(parent ID, name string, dirOnly bool) error {
	if !validName(name) {
		return InvalidName
	}
	dir, err := fsys.getDir(parent)
	if err != nil {
		return err
	}
	if err := fsys.access(dir, accessWrite|accessExec); err != nil {
		return err
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()
	key := foldName(name, fsys.cfg.CaseInsensitive)
	ent, ok := dir.lookupLocked(key)
	if !ok {
		return NotFound
	}
	child, err := fsys.get(ent.id)
	if err != nil {
		return err
	}
	switch {
	case child.kind == KindDir:
		child.mu.Lock()
		if !child.isEmptyLocked() {
			child.mu.Unlock()
			if dirOnly {
				return NotEmpty
			}
			return IsADirectory
		}
		child.removed = true
		child.mu.Unlock()
	case dirOnly:
		return NotADirectory
	}

	delete(dir.children, key)
	now := fsys.now()
	fsys.dropLink(dir, child, now)
	touchDir(dir, now)
	fsys.store.release(child)
	return nil
}

// dropLink records that one entry pointing at child was removed from dir.
// A removed directory loses both of its links and its parent loses the ".."
// link it held.
func (fsys *FileSystem) dropLink(dir, child *node, now time.Time) {
	child.attrMu.Lock()
	if child.kind == KindDir {
		child.attr.Nlink = 0
	} else if child.attr.Nlink > 0 {
		child.attr.Nlink--
	}
	child.touchLocked(now, false)
	child.attrMu.Unlock()

	if child.kind == KindDir {
		dir.attrMu.Lock()
		dir.attr.Nlink--
		dir.attrMu.Unlock()
	}
}

// RenameAt moves the entry oldName in oldParent to newName in newParent,
// replacing a file or symlink at the destination, or an empty directory when
// the source is a directory too. Resolvers observe either the old or the new
// entry, never neither.
func (fsys *FileSystem) RenameAt(oldParent ID, oldName string, newParent ID, newName string) error {
	logger := fsys.logger("RenameAt")
	if err := fsys.rename(oldParent, oldName, newParent, newName); err != nil {
		logger.Debug().Err(err).Str("old", oldName).Str("new", newName).Msg("Rename failed")
		return newError("rename", oldName, CodeOf(err))
	}
	logger.Debug().
		Uint64("old_parent", uint64(oldParent)).Str("old", oldName).
		Uint64("new_parent", uint64(newParent)).Str("new", newName).
		Msg("Renamed entry")
	return nil
}

func (fsys *FileSystem) rename(oldParent ID, oldName string, newParent ID, newName string) error {
	if !validName(oldName) || !validName(newName) {
		return InvalidName
	}
	src, err := fsys.getDir(oldParent)
	if err != nil {
		return err
	}
	dst, err := fsys.getDir(newParent)
	if err != nil {
		return err
	}
	if err := fsys.access(src, accessWrite|accessExec); err != nil {
		return err
	}
	if err := fsys.access(dst, accessWrite|accessExec); err != nil {
		return err
	}

	ctx := newLockContext()
	defer ctx.Close()
	if src == dst {
		ctx.lock(src)
		return fsys.renameLocked(ctx, src, oldName, dst, newName)
	}

	// Ancestry only changes under renameMu, so the cycle check and lock
	// ordering below stay valid until the move completes.
	fsys.renameMu.Lock()
	ctx.AddClose(fsys.renameMu.Unlock)
	switch {
	case fsys.isAncestor(src.id, dst.id):
		ctx.lock(src)
		ctx.lock(dst)
	case fsys.isAncestor(dst.id, src.id):
		ctx.lock(dst)
		ctx.lock(src)
	case src.id < dst.id:
		ctx.lock(src)
		ctx.lock(dst)
	default:
		ctx.lock(dst)
		ctx.lock(src)
	}
	return fsys.renameLocked(ctx, src, oldName, dst, newName)
}

// renameLocked performs the move. ctx holds the tree locks of src and dst
// (and renameMu when they differ).
func (fsys *FileSystem) renameLocked(ctx *lockContext, src *node, oldName string, dst *node, newName string) error {
	if src.removed || dst.removed {
		return NotFound
	}
	oldKey := foldName(oldName, fsys.cfg.CaseInsensitive)
	newKey := foldName(newName, fsys.cfg.CaseInsensitive)
	ent, ok := src.lookupLocked(oldKey)
	if !ok {
		return NotFound
	}
	moving, err := fsys.get(ent.id)
	if err != nil {
		return err
	}
	if moving.kind == KindDir && src != dst && fsys.isAncestor(moving.id, dst.id) {
		return CrossDeviceOrCyclicMove
	}

	var victim *node
	if existing, ok := dst.lookupLocked(newKey); ok {
		if existing.id == ent.id {
			if src == dst && oldKey == newKey {
				// Same entry; only the spelling can change.
				src.children[oldKey] = dirent{name: newName, id: ent.id}
			}
			return nil
		}
		if victim, err = fsys.get(existing.id); err != nil {
			return err
		}
		switch {
		case moving.kind == KindDir && victim.kind != KindDir:
			return NotADirectory
		case moving.kind != KindDir && victim.kind == KindDir:
			return IsADirectory
		case victim.kind == KindDir:
			// A directory on the source's ancestor chain is never empty.
			if ctx.holds(victim.id) || fsys.isAncestor(victim.id, src.id) {
				return AlreadyExists
			}
			ctx.lock(victim)
			if !victim.isEmptyLocked() {
				return AlreadyExists
			}
			victim.removed = true
		}
	}

	dst.children[newKey] = dirent{name: newName, id: ent.id}
	delete(src.children, oldKey)

	now := fsys.now()
	if moving.kind == KindDir && src != dst {
		moving.parent.Store(uint64(dst.id))
		src.attrMu.Lock()
		src.attr.Nlink--
		src.attrMu.Unlock()
		dst.attrMu.Lock()
		dst.attr.Nlink++
		dst.attrMu.Unlock()
	}
	if victim != nil {
		fsys.dropLink(dst, victim, now)
	}
	touchDir(src, now)
	if dst != src {
		touchDir(dst, now)
	}
	moving.attrMu.Lock()
	moving.touchLocked(now, false)
	moving.attrMu.Unlock()

	if victim != nil {
		fsys.store.release(victim)
	}
	return nil
}

// isAncestor reports whether directory a is d or one of d's ancestors.
// Callers hold renameMu or accept a racy answer.
func (fsys *FileSystem) isAncestor(a, d ID) bool {
	cur := d
	for range fsys.store.size() + 1 {
		if cur == a {
			return true
		}
		if cur == RootID {
			return false
		}
		n, ok := fsys.store.get(cur)
		if !ok {
			return false
		}
		cur = n.parentID()
	}
	return false
}

// LinkAt adds the entry name in directory parent for the regular file target.
func (fsys *FileSystem) LinkAt(target, parent ID, name string) error {
	logger := fsys.logger("LinkAt")
	if err := fsys.link(target, parent, name); err != nil {
		logger.Debug().Err(err).Uint64("target", uint64(target)).Str("name", name).Msg("Link failed")
		return newError("link", name, CodeOf(err))
	}
	logger.Debug().Uint64("target", uint64(target)).Uint64("parent", uint64(parent)).Str("name", name).Msg("Linked node")
	return nil
}

func (fsys *FileSystem) link(target, parent ID, name string) error {
	if !fsys.cfg.HardLinks {
		return OperationNotSupported
	}
	if !validName(name) {
		return InvalidName
	}
	t, err := fsys.get(target)
	if err != nil {
		return err
	}
	if t.kind != KindFile {
		return OperationNotSupported
	}
	dir, err := fsys.getDir(parent)
	if err != nil {
		return err
	}
	if err := fsys.access(dir, accessWrite|accessExec); err != nil {
		return err
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.removed {
		return NotFound
	}
	key := foldName(name, fsys.cfg.CaseInsensitive)
	if _, ok := dir.lookupLocked(key); ok {
		return AlreadyExists
	}

	now := fsys.now()
	t.attrMu.Lock()
	if t.freed || t.attr.Nlink == 0 {
		t.attrMu.Unlock()
		return NotFound
	}
	t.attr.Nlink++
	t.touchLocked(now, false)
	t.attrMu.Unlock()

	dir.children[key] = dirent{name: name, id: target}
	touchDir(dir, now)
	return nil
}

// touchDir records a change to a directory's entries.
func touchDir(dir *node, now time.Time) {
	dir.attrMu.Lock()
	dir.touchLocked(now, true)
	dir.attrMu.Unlock()
}
