package filesystem

import (
	"fmt"
	"io/fs"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// NodeKind is the closed set of node variants. The zero value means "any"
// where a kind is used as a filter.
type NodeKind uint8

const (
	KindFile NodeKind = iota + 1
	KindDir
	KindSymlink
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

func (k NodeKind) MarshalText() ([]byte, error) {
	switch k {
	case KindFile, KindDir, KindSymlink:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("invalid node kind %d", k)
	}
}

func (k *NodeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*k = KindFile
	case "dir", "directory":
		*k = KindDir
	case "symlink", "link":
		*k = KindSymlink
	default:
		return fmt.Errorf("unknown node kind %q", text)
	}
	return nil
}

// typeBits returns the S_IF* bits stored in the attribute mode.
func (k NodeKind) typeBits() uint32 {
	switch k {
	case KindDir:
		return fuse.S_IFDIR
	case KindSymlink:
		return fuse.S_IFLNK
	default:
		return fuse.S_IFREG
	}
}

func (k NodeKind) fileMode() fs.FileMode {
	switch k {
	case KindDir:
		return fs.ModeDir
	case KindSymlink:
		return fs.ModeSymlink
	default:
		return 0
	}
}
