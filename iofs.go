package filesystem

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ioFS is a read-only io/fs view of the tree below base.
type ioFS struct {
	fsys *FileSystem
	base string
}

var (
	_ fs.ReadDirFS   = (*ioFS)(nil)
	_ fs.ReadFileFS  = (*ioFS)(nil)
	_ fs.StatFS      = (*ioFS)(nil)
	_ fs.ReadDirFile = (*File)(nil)
)

// FS returns a read-only io/fs view of the whole tree. Names are relative
// to the root directory.
func (fsys *FileSystem) FS() fs.FS {
	return &ioFS{fsys: fsys, base: "/"}
}

// abs maps an io/fs name onto an absolute path.
func (v *ioFS) abs(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return path.Join(v.base, name), nil
}

// toFSError restates err in terms of the io/fs name.
func toFSError(op, name string, err error) error {
	if code := CodeOf(err); code != 0 {
		return &fs.PathError{Op: op, Path: name, Err: code}
	}
	return err
}

func (v *ioFS) Open(name string) (fs.File, error) {
	p, err := v.abs("open", name)
	if err != nil {
		return nil, err
	}
	f, err := v.fsys.openFile(p, 0, 0)
	if err != nil {
		return nil, toFSError("open", name, err)
	}
	f.name = name
	return f, nil
}

func (v *ioFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := v.abs("readdir", name)
	if err != nil {
		return nil, err
	}
	ents, err := v.fsys.ReadDir(p)
	if err != nil {
		return nil, toFSError("readdir", name, err)
	}
	return ents, nil
}

func (v *ioFS) ReadFile(name string) ([]byte, error) {
	p, err := v.abs("readfile", name)
	if err != nil {
		return nil, err
	}
	data, err := v.fsys.ReadFile(p)
	if err != nil {
		return nil, toFSError("readfile", name, err)
	}
	return data, nil
}

func (v *ioFS) Stat(name string) (fs.FileInfo, error) {
	p, err := v.abs("stat", name)
	if err != nil {
		return nil, err
	}
	fi, err := v.fsys.Stat(p)
	if err != nil {
		return nil, toFSError("stat", name, err)
	}
	return &FileInfo{name: path.Base(name), stat: fi.stat}, nil
}

// Glob returns the paths matching pattern, which may use "**" to match any
// number of directories. Absolute patterns match from the root and yield
// absolute paths; relative ones match from the working directory.
func (fsys *FileSystem) Glob(pattern string) ([]string, error) {
	base, rel := "/", strings.TrimLeft(pattern, "/")
	if !path.IsAbs(pattern) {
		wd, err := fsys.Getwd()
		if err != nil {
			return nil, err
		}
		base, rel = wd, pattern
	}
	matches, err := doublestar.Glob(&ioFS{fsys: fsys, base: base}, rel)
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, newError("glob", pattern, InvalidArgument)
		}
		return nil, err
	}
	if path.IsAbs(pattern) {
		for i, m := range matches {
			matches[i] = "/" + m
		}
	}
	return matches, nil
}
