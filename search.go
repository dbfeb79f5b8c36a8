package filesystem

import (
	"iter"
	"path"
	"slices"
	"strings"
)

// WildcardExtension matches every file in FindOptions.Extensions.
const WildcardExtension = ".*"

// DefaultExcludedDirs are the directory names FindFiles skips unless told
// otherwise.
var DefaultExcludedDirs = []string{".git", ".pytest_cache", ".mypy_cache", "__pycache__"}

// FindOptions filters FindFiles.
type FindOptions struct {
	// Extensions lists suffixes such as ".go" to match; empty means
	// WildcardExtension.
	Extensions []string
	// ExcludedDirs are directory names not descended into; nil means
	// DefaultExcludedDirs, an empty non-nil slice excludes nothing.
	ExcludedDirs []string
}

// FindFiles yields every non-directory below root whose extension matches,
// in name order, depth first. Symlinks are reported, never followed.
func (fsys *FileSystem) FindFiles(root string, opts FindOptions) iter.Seq2[string, error] {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{WildcardExtension}
	}
	excluded := opts.ExcludedDirs
	if excluded == nil {
		excluded = DefaultExcludedDirs
	}

	return func(yield func(string, error) bool) {
		var find func(dir string) bool
		find = func(dir string) bool {
			ents, err := fsys.ReadDir(dir)
			if err != nil {
				return yield("", err)
			}
			for _, ent := range ents {
				p := path.Join(dir, ent.Name())
				if ent.IsDir() {
					if !slices.Contains(excluded, ent.Name()) && !find(p) {
						return false
					}
					continue
				}
				if matchesAnyExtension(ent.Name(), exts) && !yield(p, nil) {
					return false
				}
			}
			return true
		}
		find(root)
	}
}

func matchesAnyExtension(name string, exts []string) bool {
	suffix := extension(name)
	for _, ext := range exts {
		if ext == WildcardExtension || ext == suffix {
			return true
		}
	}
	return false
}

// extension returns the final ".ext" of name. Dot files such as ".bashrc"
// have none.
func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// FindEmptyDirs yields empty directories below and including root, deepest
// first. A directory's emptiness is checked only after everything below it
// was yielded, so a consumer removing yielded directories exposes their
// parents as well. Without recursive only root itself is considered.
func (fsys *FileSystem) FindEmptyDirs(root string, recursive bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if fi, err := fsys.Stat(root); err != nil {
			yield("", err)
			return
		} else if !fi.IsDir() {
			yield("", newError("findempty", root, NotADirectory))
			return
		}

		var find func(dir string) bool
		find = func(dir string) bool {
			if recursive {
				ents, err := fsys.ReadDir(dir)
				if err != nil {
					return yield("", err)
				}
				for _, ent := range ents {
					if ent.IsDir() && !find(path.Join(dir, ent.Name())) {
						return false
					}
				}
			}
			n, err := fsys.CountEntries(dir)
			if err != nil {
				return yield("", err)
			}
			if n == 0 {
				return yield(dir, nil)
			}
			return true
		}
		find(root)
	}
}

// FindChildDir returns the path of the directory called name directly
// under dir, and false if there is none.
func (fsys *FileSystem) FindChildDir(dir, name string) (string, bool) {
	dirs, err := fsys.ChildDirs(dir)
	if err != nil {
		return "", false
	}
	for _, d := range dirs {
		if path.Base(d) == name {
			return d, true
		}
	}
	return "", false
}

// ChildDirs returns the paths of the directories directly under dir.
func (fsys *FileSystem) ChildDirs(dir string) ([]string, error) {
	ents, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, ent := range ents {
		if ent.IsDir() {
			dirs = append(dirs, path.Join(dir, ent.Name()))
		}
	}
	return dirs, nil
}

// IsEmptyDir reports whether p is a directory without entries.
func (fsys *FileSystem) IsEmptyDir(p string) bool {
	n, _, err := fsys.lookupPath(p, true)
	if err != nil || n.kind != KindDir {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isEmptyLocked()
}

// CountEntries returns the number of entries directly under dir.
func (fsys *FileSystem) CountEntries(dir string) (int, error) {
	n, _, err := fsys.lookupPath(dir, true)
	if err == nil {
		err = checkKind(n.kind, KindDir)
	}
	if err != nil {
		return 0, newError("count", dir, CodeOf(err))
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children), nil
}

// EnsureDir makes sure p is a directory, creating it and its parents if
// needed, and returns p.
func (fsys *FileSystem) EnsureDir(p string) (string, error) {
	if err := fsys.MkdirAll(p, fsys.cfg.DefaultDirMode); err != nil {
		return "", err
	}
	return p, nil
}

// TryRmdir removes p if it is an empty directory and reports whether it did.
func (fsys *FileSystem) TryRmdir(p string) bool {
	res, err := fsys.entryPath(p)
	if err != nil || res.id == 0 {
		return false
	}
	return fsys.removeEntry(res.parent, res.name, true) == nil
}

// Rel returns p relative to the working directory when p lies below it,
// and p unchanged otherwise.
func (fsys *FileSystem) Rel(p string) string {
	if !path.IsAbs(p) {
		return p
	}
	wd, err := fsys.Getwd()
	if err != nil {
		return p
	}
	clean := path.Clean(p)
	if clean == wd {
		return "."
	}
	prefix := wd
	if prefix != "/" {
		prefix += "/"
	}
	if rel, ok := strings.CutPrefix(clean, prefix); ok {
		return rel
	}
	return p
}
