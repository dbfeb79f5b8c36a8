package filesystem

import (
	"strings"
)

// ResolveOptions tunes how Resolve treats the final path segment.
type ResolveOptions struct {
	// FollowFinal expands a symlink in the final segment. Symlinks in
	// earlier segments are always expanded.
	FollowFinal bool
	// MustExist makes a missing final entry an error. Otherwise Resolve
	// returns (0, nil) when only the final entry is missing.
	MustExist bool
	// Kind requires the resolved node to be of that kind. Zero accepts any.
	Kind NodeKind
}

// resolution is the outcome of walking a path.
type resolution struct {
	parent ID     // directory holding the final entry
	name   string // final entry as spelled in the path; "" for root or a final "." or ".."
	id     ID     // final node; 0 when the entry does not exist
}

// Resolve maps a path to the identity of the node it names.
func (fsys *FileSystem) Resolve(p string, opts ResolveOptions) (ID, error) {
	res, err := fsys.walk(p, opts.FollowFinal)
	if err != nil {
		return 0, newError("resolve", p, CodeOf(err))
	}
	if res.id == 0 {
		if opts.MustExist {
			return 0, newError("resolve", p, NotFound)
		}
		return 0, nil
	}
	if opts.Kind != 0 {
		n, err := fsys.get(res.id)
		if err != nil {
			return 0, newError("resolve", p, NotFound)
		}
		if err := checkKind(n.kind, opts.Kind); err != nil {
			return 0, newError("resolve", p, CodeOf(err))
		}
	}
	return res.id, nil
}

func checkKind(have, want NodeKind) error {
	if have == want {
		return nil
	}
	switch want {
	case KindDir:
		return NotADirectory
	case KindFile:
		if have == KindDir {
			return IsADirectory
		}
		return OperationNotSupported
	default:
		return InvalidArgument
	}
}

// walk resolves p one segment at a time, taking each directory's tree lock
// only for the duration of a single lookup. A missing final entry is not an
// error: the returned resolution then names the directory it would live in.
func (fsys *FileSystem) walk(p string, follow bool) (resolution, error) {
	cur := ID(fsys.cwd.Load())
	if strings.HasPrefix(p, "/") {
		cur = RootID
	}
	start, err := fsys.get(cur)
	if err != nil {
		return resolution{}, err
	}
	res := resolution{parent: start.parentID(), id: cur}

	queue := splitPath(p)
	trailing := hasTrailingSlash(p)
	expansions := 0
	for len(queue) > 0 {
		seg := queue[0]
		queue = queue[1:]
		last := len(queue) == 0

		dir, err := fsys.getDir(cur)
		if err != nil {
			return resolution{}, err
		}
		switch seg {
		case ".":
			res = resolution{parent: dir.parentID(), id: cur}
			continue
		case "..":
			cur = dir.parentID()
			up, err := fsys.get(cur)
			if err != nil {
				return resolution{}, err
			}
			res = resolution{parent: up.parentID(), id: cur}
			continue
		}
		if err := fsys.access(dir, accessExec); err != nil {
			return resolution{}, err
		}

		ent, ok := dir.lookup(foldName(seg, fsys.cfg.CaseInsensitive))
		if !ok {
			if last {
				return resolution{parent: cur, name: seg}, nil
			}
			return resolution{}, NotFound
		}
		child, err := fsys.get(ent.id)
		if err != nil {
			return resolution{}, err
		}

		if child.kind == KindSymlink && (!last || follow || trailing) {
			expansions++
			if expansions > fsys.cfg.MaxSymlinkExpansions {
				return resolution{}, TooManyLinks
			}
			child.attrMu.RLock()
			target := child.target
			child.attrMu.RUnlock()
			if target == "" {
				return resolution{}, NotFound
			}
			if last && hasTrailingSlash(target) {
				trailing = true
			}
			if strings.HasPrefix(target, "/") {
				cur = RootID
				res = resolution{parent: RootID, id: RootID}
			}
			queue = append(splitPath(target), queue...)
			continue
		}

		res = resolution{parent: cur, name: seg, id: ent.id}
		cur = ent.id
	}

	if trailing && res.id != 0 {
		n, err := fsys.get(res.id)
		if err != nil {
			return resolution{}, err
		}
		if n.kind != KindDir {
			return resolution{}, NotADirectory
		}
	}
	return res, nil
}

// splitPath returns the non-empty segments of p.
func splitPath(p string) []string {
	segs := strings.Split(p, "/")
	out := segs[:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasTrailingSlash(p string) bool {
	return len(p) > 1 && strings.HasSuffix(p, "/")
}
