package fixture

import (
	"github.com/zxul767/filesystem/config"
)

// Fixture is the file representation of a tree to seed into a filesystem,
// optionally together with the configuration the filesystem is built with.
type Fixture struct {
	Root   string                 `yaml:"root,omitempty" json:"root,omitempty"` // Directory the nodes are seeded below (Default "/")
	Config *config.ConfigOverride `yaml:"config,omitempty" json:"config,omitempty"`
	Nodes  []NodeDTO              `yaml:"nodes" json:"nodes"`
}

// NodeDTO is the file representation of [filesystem.TreeNode].
//
// Type may be omitted: a node with children is a directory, one with a
// target a symlink, anything else a regular file. An empty directory must
// state its type or give an empty children list.
type NodeDTO struct {
	Name     string    `yaml:"name" json:"name"`
	Type     *string   `yaml:"type,omitempty" json:"type,omitempty"` // "file", "dir" or "symlink"
	Mode     *string   `yaml:"mode,omitempty" json:"mode,omitempty"` // Octal permission bits, i.e. "0755"
	Content  *string   `yaml:"content,omitempty" json:"content,omitempty"`
	Target   *string   `yaml:"target,omitempty" json:"target,omitempty"`
	Children []NodeDTO `yaml:"children,omitempty" json:"children,omitempty"`
}
