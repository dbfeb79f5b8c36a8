package adapters

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/zxul767/filesystem"
)

// AferoFs exposes a virtual filesystem through afero.Fs so it can stand in
// for afero.NewOsFs or afero.NewMemMapFs.
//
// Errors carry syscall errnos, so os.IsNotExist and friends work on them.
type AferoFs struct {
	fsys *filesystem.FileSystem
}

var (
	_ afero.Fs        = (*AferoFs)(nil)
	_ afero.Symlinker = (*AferoFs)(nil)
	_ afero.File      = (*aferoFile)(nil)
)

// NewAferoFs wraps fsys.
func NewAferoFs(fsys *filesystem.FileSystem) *AferoFs {
	return &AferoFs{fsys: fsys}
}

// toOSError restates err with the errno of its Code.
func toOSError(err error, op, name string) error {
	code := filesystem.CodeOf(err)
	if code == 0 {
		return err
	}
	var pe *filesystem.PathError
	if errors.As(err, &pe) {
		op = pe.Op
		if pe.Path != "" {
			name = pe.Path
		}
	}
	return &fs.PathError{Op: op, Path: name, Err: code.Errno()}
}

// toLinkError is toOSError for operations naming two paths.
func toLinkError(err error, op, oldname, newname string) error {
	code := filesystem.CodeOf(err)
	if code == 0 {
		return err
	}
	return &os.LinkError{Op: op, Old: oldname, New: newname, Err: code.Errno()}
}

func (a *AferoFs) Name() string {
	return "vfs"
}

func (a *AferoFs) Create(name string) (afero.File, error) {
	f, err := a.fsys.Create(name)
	if err != nil {
		return nil, toOSError(err, "open", name)
	}
	return &aferoFile{f}, nil
}

func (a *AferoFs) Mkdir(name string, perm os.FileMode) error {
	return toOSError(a.fsys.Mkdir(name, perm), "mkdir", name)
}

func (a *AferoFs) MkdirAll(p string, perm os.FileMode) error {
	return toOSError(a.fsys.MkdirAll(p, perm), "mkdir", p)
}

func (a *AferoFs) Open(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDONLY, 0)
}

func (a *AferoFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := a.fsys.OpenFile(name, flag, perm)
	if err != nil {
		return nil, toOSError(err, "open", name)
	}
	return &aferoFile{f}, nil
}

func (a *AferoFs) Remove(name string) error {
	return toOSError(a.fsys.Remove(name), "remove", name)
}

func (a *AferoFs) RemoveAll(p string) error {
	return toOSError(a.fsys.RemoveAll(p), "removeall", p)
}

func (a *AferoFs) Rename(oldname, newname string) error {
	return toLinkError(a.fsys.Rename(oldname, newname), "rename", oldname, newname)
}

func (a *AferoFs) Stat(name string) (os.FileInfo, error) {
	fi, err := a.fsys.Stat(name)
	if err != nil {
		return nil, toOSError(err, "stat", name)
	}
	return fi, nil
}

// LstatIfPossible never follows a final symlink; the bool is always true.
func (a *AferoFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	fi, err := a.fsys.Lstat(name)
	if err != nil {
		return nil, true, toOSError(err, "lstat", name)
	}
	return fi, true, nil
}

func (a *AferoFs) SymlinkIfPossible(oldname, newname string) error {
	return toLinkError(a.fsys.Symlink(oldname, newname), "symlink", oldname, newname)
}

func (a *AferoFs) ReadlinkIfPossible(name string) (string, error) {
	target, err := a.fsys.Readlink(name)
	if err != nil {
		return "", toOSError(err, "readlink", name)
	}
	return target, nil
}

func (a *AferoFs) Chmod(name string, mode os.FileMode) error {
	return toOSError(a.fsys.Chmod(name, mode), "chmod", name)
}

func (a *AferoFs) Chown(name string, uid, gid int) error {
	return toOSError(a.fsys.Chown(name, uid, gid), "chown", name)
}

func (a *AferoFs) Chtimes(name string, atime, mtime time.Time) error {
	return toOSError(a.fsys.Chtimes(name, atime, mtime), "chtimes", name)
}

// aferoFile converts the errors of a *filesystem.File. io.EOF passes
// through untouched.
type aferoFile struct {
	*filesystem.File
}

func (f *aferoFile) err(err error, op string) error {
	return toOSError(err, op, f.Name())
}

func (f *aferoFile) Close() error {
	return f.err(f.File.Close(), "close")
}

func (f *aferoFile) Read(p []byte) (int, error) {
	n, err := f.File.Read(p)
	return n, f.err(err, "read")
}

func (f *aferoFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.File.ReadAt(p, off)
	return n, f.err(err, "read")
}

func (f *aferoFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.File.Seek(offset, whence)
	return pos, f.err(err, "seek")
}

func (f *aferoFile) Write(p []byte) (int, error) {
	n, err := f.File.Write(p)
	return n, f.err(err, "write")
}

func (f *aferoFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.File.WriteAt(p, off)
	return n, f.err(err, "write")
}

func (f *aferoFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *aferoFile) Readdir(count int) ([]os.FileInfo, error) {
	infos, err := f.File.Readdir(count)
	return infos, f.err(err, "readdir")
}

func (f *aferoFile) Readdirnames(n int) ([]string, error) {
	names, err := f.File.Readdirnames(n)
	return names, f.err(err, "readdirnames")
}

func (f *aferoFile) Stat() (os.FileInfo, error) {
	fi, err := f.File.Stat()
	return fi, f.err(err, "stat")
}

func (f *aferoFile) Sync() error {
	return f.err(f.File.Sync(), "sync")
}

func (f *aferoFile) Truncate(size int64) error {
	return f.err(f.File.Truncate(size), "truncate")
}
