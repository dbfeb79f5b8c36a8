package filesystem

import (
	"io/fs"
)

// TreeNode is a recursive export of a subtree. Exactly one of Content,
// Target or Children is meaningful, depending on Kind.
type TreeNode struct {
	Name     string      `yaml:"name" json:"name"`
	Kind     NodeKind    `yaml:"kind" json:"kind"`
	Mode     fs.FileMode `yaml:"mode,omitempty" json:"mode,omitempty"` // permission bits; 0 means the default
	Content  string      `yaml:"content,omitempty" json:"content,omitempty"`
	Target   string      `yaml:"target,omitempty" json:"target,omitempty"`
	Children []*TreeNode `yaml:"children,omitempty" json:"children,omitempty"`
}

// Snapshot exports the subtree at p without following a final symlink.
// Children are ordered by name.
func (fsys *FileSystem) Snapshot(p string) (*TreeNode, error) {
	n, name, err := fsys.lookupPath(p, false)
	if err != nil {
		return nil, newError("snapshot", p, CodeOf(err))
	}
	tree, err := fsys.snapshot(n, name)
	if err != nil {
		return nil, newError("snapshot", p, CodeOf(err))
	}
	return tree, nil
}

func (fsys *FileSystem) snapshot(n *node, name string) (*TreeNode, error) {
	n.attrMu.RLock()
	tree := &TreeNode{
		Name:   name,
		Kind:   n.kind,
		Mode:   n.permLocked(),
		Target: n.target,
	}
	if n.kind == KindFile {
		tree.Content = string(n.data)
	}
	n.attrMu.RUnlock()

	if n.kind != KindDir {
		return tree, nil
	}
	if err := fsys.access(n, accessRead|accessExec); err != nil {
		return nil, err
	}
	for _, ent := range n.entries() {
		child, err := fsys.get(ent.id)
		if err != nil {
			// Removed while we were listing.
			continue
		}
		sub, err := fsys.snapshot(child, ent.name)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, sub)
	}
	return tree, nil
}

// Seed materializes tree's children below the directory p, creating p with
// MkdirAll if needed. Existing directories are merged into; any other
// existing entry fails with AlreadyExists. Directory modes are applied after
// their children exist, so read-only directories can be seeded. tree's own
// name is ignored.
func (fsys *FileSystem) Seed(p string, tree *TreeNode) error {
	if tree == nil {
		return nil
	}
	if err := fsys.MkdirAll(p, fsys.cfg.DefaultDirMode); err != nil {
		return err
	}
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = fsys.seedDir(n, tree)
	}
	if err != nil {
		return newError("seed", p, CodeOf(err))
	}
	fsys.logger("Seed").Debug().Str("path", p).Msg("Seeded tree")
	return nil
}

func (fsys *FileSystem) seedDir(dir *node, tree *TreeNode) error {
	for _, child := range tree.Children {
		if err := fsys.seedEntry(dir, child); err != nil {
			return err
		}
	}
	if tree.Mode != 0 {
		return fsys.chmod(dir, tree.Mode)
	}
	return nil
}

func (fsys *FileSystem) seedEntry(dir *node, tree *TreeNode) error {
	kind := tree.Kind
	if kind == 0 {
		kind = inferKind(tree)
	}

	if kind == KindDir {
		if ent, ok := dir.lookup(foldName(tree.Name, fsys.cfg.CaseInsensitive)); ok {
			existing, err := fsys.getDir(ent.id)
			if err != nil {
				return AlreadyExists
			}
			return fsys.seedDir(existing, tree)
		}
	}

	id, err := fsys.create(dir.id, tree.Name, kind, CreateOptions{Target: tree.Target, Data: []byte(tree.Content)})
	if err != nil {
		return err
	}
	n, err := fsys.get(id)
	if err != nil {
		return err
	}
	switch kind {
	case KindDir:
		return fsys.seedDir(n, tree)
	case KindFile:
		if tree.Mode != 0 {
			return fsys.chmod(n, tree.Mode)
		}
	}
	return nil
}

// inferKind guesses the kind of a TreeNode that does not state it.
func inferKind(tree *TreeNode) NodeKind {
	switch {
	case tree.Children != nil:
		return KindDir
	case tree.Target != "":
		return KindSymlink
	default:
		return KindFile
	}
}
