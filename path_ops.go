package filesystem

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"
)

// entryPath resolves the entry p names without following a final symlink,
// for operations that act on the entry itself.
func (fsys *FileSystem) entryPath(p string) (resolution, error) {
	res, err := fsys.walk(p, false)
	if err != nil {
		return resolution{}, err
	}
	if res.name == "" {
		return resolution{}, specialEntry(res.id)
	}
	return res, nil
}

// slashDir fails with NotADirectory when p, stripped of its trailing
// slashes and not followed, names something other than a directory. A
// missing entry passes.
func (fsys *FileSystem) slashDir(p string) error {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return nil
	}
	res, err := fsys.walk(trimmed, false)
	if err != nil || res.id == 0 {
		return err
	}
	n, err := fsys.get(res.id)
	if err != nil {
		return err
	}
	if n.kind != KindDir {
		return NotADirectory
	}
	return nil
}

// specialEntry is the failure for operations that need a named entry but
// got root or a final "." or "..".
func specialEntry(id ID) Code {
	if id == RootID {
		return OperationNotSupported
	}
	return InvalidName
}

// Mkdir creates the directory p with perm (before the umask).
func (fsys *FileSystem) Mkdir(p string, perm fs.FileMode) error {
	res, err := fsys.walk(p, false)
	switch {
	case err != nil:
		return newError("mkdir", p, CodeOf(err))
	case res.id != 0:
		return newError("mkdir", p, AlreadyExists)
	}
	if _, err := fsys.create(res.parent, res.name, KindDir, CreateOptions{Perm: &perm}); err != nil {
		return newError("mkdir", p, CodeOf(err))
	}
	fsys.logger("Mkdir").Debug().Str("path", p).Msg("Created directory")
	return nil
}

// MkdirAll creates p and any missing parents. It succeeds if p already is
// a directory.
func (fsys *FileSystem) MkdirAll(p string, perm fs.FileMode) error {
	if fi, err := fsys.Stat(p); err == nil {
		if fi.IsDir() {
			return nil
		}
		return newError("mkdir", p, NotADirectory)
	}

	trimmed := strings.TrimRight(p, "/")
	if parent := path.Dir(trimmed); trimmed != "" && parent != trimmed {
		if err := fsys.MkdirAll(parent, perm); err != nil {
			return err
		}
	}

	err := fsys.Mkdir(p, perm)
	if err != nil {
		// Lost a race, or p is a symlink to a directory.
		if fi, serr := fsys.Stat(p); serr == nil && fi.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// OpenFile opens p with os.O_* flags. With os.O_CREATE a missing file is
// created with perm (before the umask); a final dangling symlink creates its
// target unless os.O_EXCL is also set.
func (fsys *FileSystem) OpenFile(p string, flag int, perm fs.FileMode) (*File, error) {
	f, err := fsys.openFile(p, flag, perm)
	if err != nil {
		fsys.logger("OpenFile").Trace().Err(err).Str("path", p).Int("flag", flag).Msg("Open failed")
		return nil, newError("open", p, CodeOf(err))
	}
	return f, nil
}

func (fsys *FileSystem) openFile(p string, flag int, perm fs.FileMode) (*File, error) {
	if flag&os.O_CREATE == 0 {
		res, err := fsys.walk(p, true)
		if err != nil {
			return nil, err
		}
		if res.id == 0 {
			return nil, NotFound
		}
		return fsys.open(res.id, flag, p, true)
	}

	excl := flag&os.O_EXCL != 0
	// A concurrent create can win between the lookup and our insert; retry
	// the lookup once in that case.
	for range 2 {
		res, err := fsys.walk(p, !excl)
		if err != nil {
			return nil, err
		}
		if res.id != 0 {
			if excl {
				return nil, AlreadyExists
			}
			return fsys.open(res.id, flag, p, true)
		}
		if hasTrailingSlash(p) {
			return nil, IsADirectory
		}
		id, err := fsys.create(res.parent, res.name, KindFile, CreateOptions{Perm: &perm})
		if errors.Is(err, AlreadyExists) && !excl {
			continue
		}
		if err != nil {
			return nil, err
		}
		fsys.logger("OpenFile").Debug().Str("path", p).Uint64("id", uint64(id)).Msg("Created file")
		return fsys.open(id, flag&^os.O_TRUNC, p, false)
	}
	return nil, AlreadyExists
}

// Open opens p for reading.
func (fsys *FileSystem) Open(p string) (*File, error) {
	return fsys.OpenFile(p, os.O_RDONLY, 0)
}

// Create creates or truncates p and opens it for reading and writing.
func (fsys *FileSystem) Create(p string) (*File, error) {
	return fsys.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fsys.cfg.DefaultFileMode)
}

// WriteFile replaces the content of p with data, creating it with perm if
// missing.
func (fsys *FileSystem) WriteFile(p string, data []byte, perm fs.FileMode) error {
	f, err := fsys.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadFile returns a copy of the content of p.
func (fsys *FileSystem) ReadFile(p string) ([]byte, error) {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = checkKind(n.kind, KindFile)
	}
	if err == nil {
		err = fsys.access(n, accessRead)
	}
	if err != nil {
		return nil, newError("read", p, CodeOf(err))
	}
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return bytes.Clone(n.data), nil
}

// Remove removes the file, symlink or empty directory p.
func (fsys *FileSystem) Remove(p string) error {
	res, err := fsys.entryPath(p)
	if err == nil && res.id == 0 {
		err = NotFound
	}
	if err == nil {
		var n *node
		if n, err = fsys.get(res.id); err == nil {
			err = fsys.removeEntry(res.parent, res.name, n.kind == KindDir)
		}
	}
	if err != nil {
		return newError("remove", p, CodeOf(err))
	}
	fsys.logger("Remove").Debug().Str("path", p).Msg("Removed entry")
	return nil
}

// RemoveAll removes p and everything below it. A missing p is not an error.
func (fsys *FileSystem) RemoveAll(p string) error {
	res, err := fsys.entryPath(p)
	if err != nil {
		if CodeOf(err) == NotFound {
			return nil
		}
		return newError("removeall", p, CodeOf(err))
	}
	if res.id == 0 {
		return nil
	}
	if err := fsys.removeTree(res.parent, res.name, res.id); err != nil {
		return newError("removeall", p, CodeOf(err))
	}
	fsys.logger("RemoveAll").Debug().Str("path", p).Msg("Removed tree")
	return nil
}

// removeTree removes entry name (node id) of parent, children first.
func (fsys *FileSystem) removeTree(parent ID, name string, id ID) error {
	n, err := fsys.get(id)
	if err != nil {
		return nil
	}
	if n.kind != KindDir {
		return ignoreNotFound(fsys.removeEntry(parent, name, false))
	}
	for _, ent := range n.entries() {
		if err := fsys.removeTree(id, ent.name, ent.id); err != nil {
			return err
		}
	}
	return ignoreNotFound(fsys.removeEntry(parent, name, true))
}

func ignoreNotFound(err error) error {
	if CodeOf(err) == NotFound {
		return nil
	}
	return err
}

// Rename moves oldpath to newpath, replacing newpath when allowed.
func (fsys *FileSystem) Rename(oldpath, newpath string) error {
	src, err := fsys.entryPath(oldpath)
	if err == nil && src.id == 0 {
		err = NotFound
	}
	// A trailing slash on either side requires a directory source. A
	// symlink to one does not qualify.
	if err == nil && (hasTrailingSlash(oldpath) || hasTrailingSlash(newpath)) {
		err = fsys.slashDir(oldpath)
		if err == nil {
			if n, gerr := fsys.get(src.id); gerr != nil {
				err = gerr
			} else if n.kind != KindDir {
				err = NotADirectory
			}
		}
		if err == nil && hasTrailingSlash(newpath) {
			err = fsys.slashDir(newpath)
		}
	}
	var dst resolution
	if err == nil {
		dst, err = fsys.entryPath(newpath)
	}
	if err == nil {
		err = fsys.rename(src.parent, src.name, dst.parent, dst.name)
	}
	if err != nil {
		fsys.logger("Rename").Debug().Err(err).Str("old", oldpath).Str("new", newpath).Msg("Rename failed")
		return newError("rename", oldpath, CodeOf(err))
	}
	fsys.logger("Rename").Debug().Str("old", oldpath).Str("new", newpath).Msg("Renamed")
	return nil
}

// Link creates newname as a hard link to the regular file oldname.
func (fsys *FileSystem) Link(oldname, newname string) error {
	src, err := fsys.entryPath(oldname)
	if err == nil && src.id == 0 {
		err = NotFound
	}
	var dst resolution
	if err == nil {
		dst, err = fsys.entryPath(newname)
	}
	if err == nil && dst.id != 0 {
		err = AlreadyExists
	}
	if err == nil {
		err = fsys.link(src.id, dst.parent, dst.name)
	}
	if err != nil {
		return newError("link", newname, CodeOf(err))
	}
	fsys.logger("Link").Debug().Str("old", oldname).Str("new", newname).Msg("Linked")
	return nil
}

// Symlink creates newname as a symbolic link holding oldname.
func (fsys *FileSystem) Symlink(oldname, newname string) error {
	dst, err := fsys.entryPath(newname)
	if err == nil && dst.id != 0 {
		err = AlreadyExists
	}
	if err == nil {
		_, err = fsys.create(dst.parent, dst.name, KindSymlink, CreateOptions{Target: oldname})
	}
	if err != nil {
		return newError("symlink", newname, CodeOf(err))
	}
	fsys.logger("Symlink").Debug().Str("target", oldname).Str("path", newname).Msg("Created symlink")
	return nil
}

// Readlink returns the target stored in the symlink p.
func (fsys *FileSystem) Readlink(p string) (string, error) {
	n, _, err := fsys.lookupPath(p, false)
	if err == nil && n.kind != KindSymlink {
		err = InvalidArgument
	}
	if err != nil {
		return "", newError("readlink", p, CodeOf(err))
	}
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return n.target, nil
}

// ReadDir lists the directory p in name order.
func (fsys *FileSystem) ReadDir(p string) ([]fs.DirEntry, error) {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = checkKind(n.kind, KindDir)
	}
	if err == nil {
		err = fsys.access(n, accessRead)
	}
	if err != nil {
		return nil, newError("readdir", p, CodeOf(err))
	}
	ents := n.entries()
	out := make([]fs.DirEntry, 0, len(ents))
	for _, ent := range ents {
		if info, err := fsys.entryInfo(ent); err == nil {
			out = append(out, DirEntry{info: info})
		}
	}
	return out, nil
}

// Chdir makes the directory p the working directory for relative paths.
func (fsys *FileSystem) Chdir(p string) error {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = checkKind(n.kind, KindDir)
	}
	if err == nil {
		err = fsys.access(n, accessExec)
	}
	if err != nil {
		return newError("chdir", p, CodeOf(err))
	}
	fsys.cwd.Store(uint64(n.id))
	return nil
}

// Getwd returns the absolute path of the working directory.
func (fsys *FileSystem) Getwd() (string, error) {
	p, err := fsys.pathOf(ID(fsys.cwd.Load()))
	if err != nil {
		return "", newError("getwd", "", CodeOf(err))
	}
	return p, nil
}

// pathOf rebuilds the absolute path of directory id from parent links.
func (fsys *FileSystem) pathOf(id ID) (string, error) {
	var names []string
	cur := id
	for cur != RootID {
		n, err := fsys.get(cur)
		if err != nil {
			return "", err
		}
		parent, err := fsys.get(n.parentID())
		if err != nil {
			return "", err
		}
		name, ok := parent.entryName(cur)
		if !ok {
			return "", NotFound
		}
		names = append(names, name)
		cur = parent.id
	}
	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(names[i])
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}
