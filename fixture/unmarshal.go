package fixture

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zxul767/filesystem"
	"github.com/zxul767/filesystem/config"
	"github.com/zxul767/filesystem/internal/util"
)

// Format is a fixture encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the format from a file extension (.yaml, .yml or .json).
func FormatOf(p string) (Format, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown fixture file extension: %s", p)
	}
}

// Decode parses a fixture encoded in format.
func Decode(data []byte, format Format) (*Fixture, error) {
	var f Fixture
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fixture: %w", err)
		}
	case JSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fixture: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown fixture format %q", format)
	}
	return &f, nil
}

// Load reads and decodes the fixture file p.
func Load(p string) (*Fixture, error) {
	format, err := FormatOf(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Decode(data, format)
}

// Encode renders f in format.
func Encode(f *Fixture, format Format) ([]byte, error) {
	switch format {
	case YAML:
		return yaml.Marshal(f)
	case JSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown fixture format %q", format)
	}
}

// RootDir is the directory the nodes are seeded below.
func (f *Fixture) RootDir() string {
	if f.Root == "" {
		return "/"
	}
	return f.Root
}

// Tree converts the nodes into a tree rooted at RootDir.
func (f *Fixture) Tree() (*filesystem.TreeNode, error) {
	tree := &filesystem.TreeNode{Name: path.Base(f.RootDir()), Kind: filesystem.KindDir}
	for _, dto := range f.Nodes {
		child, err := convertNodeDTO(dto, f.RootDir())
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, child)
	}
	return tree, nil
}

// convertNodeDTO applies the type inference and mode parsing. dir is only
// used to name the node in errors.
func convertNodeDTO(dto NodeDTO, dir string) (*filesystem.TreeNode, error) {
	p := path.Join(dir, dto.Name)
	tree := &filesystem.TreeNode{
		Name:    dto.Name,
		Content: util.ValueOrDefault(dto.Content, ""),
		Target:  util.ValueOrDefault(dto.Target, ""),
	}
	if dto.Type != nil {
		if err := tree.Kind.UnmarshalText([]byte(*dto.Type)); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if dto.Mode != nil {
		mode, err := parseMode(*dto.Mode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		tree.Mode = mode
	}
	if dto.Children != nil {
		tree.Children = make([]*filesystem.TreeNode, 0, len(dto.Children))
		for _, c := range dto.Children {
			child, err := convertNodeDTO(c, p)
			if err != nil {
				return nil, err
			}
			tree.Children = append(tree.Children, child)
		}
	}
	if tree.Kind == filesystem.KindDir && tree.Children == nil {
		tree.Children = []*filesystem.TreeNode{}
	}
	return tree, nil
}

// parseMode reads octal permission bits such as "755", "0755" or "0o755".
func parseMode(s string) (fs.FileMode, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	v, err := strconv.ParseUint(digits, 8, 32)
	if err != nil || v > uint64(fs.ModePerm) {
		return 0, fmt.Errorf("invalid mode %q: want octal permission bits", s)
	}
	return fs.FileMode(v), nil
}

func formatMode(mode fs.FileMode) string {
	return fmt.Sprintf("%04o", uint32(mode.Perm()))
}

// FromTree builds a fixture whose nodes are tree's children, seeded below
// root. Every node states its type and mode.
func FromTree(root string, tree *filesystem.TreeNode) *Fixture {
	f := &Fixture{Root: root}
	if root == "/" {
		f.Root = ""
	}
	for _, child := range tree.Children {
		f.Nodes = append(f.Nodes, toNodeDTO(child))
	}
	return f
}

func toNodeDTO(tree *filesystem.TreeNode) NodeDTO {
	dto := NodeDTO{
		Name: tree.Name,
		Type: util.Pointer(tree.Kind.String()),
	}
	if tree.Kind != filesystem.KindSymlink {
		dto.Mode = util.Pointer(formatMode(tree.Mode))
	}
	switch tree.Kind {
	case filesystem.KindFile:
		if tree.Content != "" {
			dto.Content = util.Pointer(tree.Content)
		}
	case filesystem.KindSymlink:
		dto.Target = util.Pointer(tree.Target)
	case filesystem.KindDir:
		for _, child := range tree.Children {
			dto.Children = append(dto.Children, toNodeDTO(child))
		}
	}
	return dto
}

// Apply seeds the nodes into fsys.
func (f *Fixture) Apply(fsys *filesystem.FileSystem) error {
	logger := util.GetLogger("Fixture")
	tree, err := f.Tree()
	if err != nil {
		return err
	}
	if err := fsys.Seed(f.RootDir(), tree); err != nil {
		return err
	}
	logger.Debug().Str("root", f.RootDir()).Int("nodes", len(f.Nodes)).Msg("Applied fixture")
	return nil
}

// NewFileSystem builds a filesystem from the fixture's configuration merged
// over the defaults, and seeds it.
func (f *Fixture) NewFileSystem(opts ...filesystem.Option) (*filesystem.FileSystem, error) {
	fsys := filesystem.New(config.NewConfig(f.Config), opts...)
	if err := f.Apply(fsys); err != nil {
		_ = fsys.Close()
		return nil, err
	}
	return fsys, nil
}
