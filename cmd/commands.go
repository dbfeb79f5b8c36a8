package main

import (
	"fmt"
	"io"
	"path"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zxul767/filesystem"
	"github.com/zxul767/filesystem/fixture"
)

func newTableWriter(output io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
}

// absPath anchors a relative p at the filesystem's working directory.
func absPath(fsys *filesystem.FileSystem, p string) (string, error) {
	if path.IsAbs(p) {
		return path.Clean(p), nil
	}
	wd, err := fsys.Getwd()
	if err != nil {
		return "", err
	}
	return path.Join(wd, p), nil
}

func newTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <fixture> [path]",
		Short: "Print the directory tree below path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			p := "/"
			if len(args) == 2 {
				p = args[1]
			}
			tree, err := fsys.Snapshot(p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, treeLabel(p, tree))
			printTree(out, tree, "")
			return nil
		},
	}
}

func treeLabel(name string, tree *filesystem.TreeNode) string {
	switch tree.Kind {
	case filesystem.KindDir:
		if name == "/" {
			return name
		}
		return name + "/"
	case filesystem.KindSymlink:
		return name + " -> " + tree.Target
	default:
		return fmt.Sprintf("%s (%s)", name, humanize.IBytes(uint64(len(tree.Content))))
	}
}

func printTree(out io.Writer, tree *filesystem.TreeNode, prefix string) {
	for i, child := range tree.Children {
		branch, indent := "├── ", "│   "
		if i == len(tree.Children)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintln(out, prefix+branch+treeLabel(child.Name, child))
		printTree(out, child, prefix+indent)
	}
}

func newStatCmd(opts *rootOptions) *cobra.Command {
	var lstat bool
	cmd := &cobra.Command{
		Use:   "stat <fixture> <path>...",
		Short: "Print the attributes of one or more entries",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			w := newTableWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "PATH\tKIND\tMODE\tSIZE\tLINKS\tOWNER\tMODIFIED")
			for _, p := range args[1:] {
				stat := fsys.Stat
				if lstat {
					stat = fsys.Lstat
				}
				fi, err := stat(p)
				if err != nil {
					w.Flush()
					return err
				}
				st := fi.Stat()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d:%d\t%s\n",
					p, st.Kind, fi.Mode(), humanize.IBytes(uint64(st.Size)), st.Nlink,
					st.Uid, st.Gid, st.Mtime.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&lstat, "lstat", false, "Report a final symlink itself instead of its target")
	return cmd
}

func newCatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <fixture> <path>...",
		Short: "Print the content of one or more files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			for _, p := range args[1:] {
				data, err := fsys.ReadFile(p)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newHashCmd(opts *rootOptions) *cobra.Command {
	var weak bool
	cmd := &cobra.Command{
		Use:   "hash <fixture> <path>...",
		Short: "Print content hashes of one or more files",
		Long: `Print the MD5 digest of each file. With --weak large files are hashed
from their first and last chunks only.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			paths := args[1:]
			sums := make(map[string]string, len(paths))
			if weak {
				for _, p := range paths {
					sum, err := fsys.WeakHash(p)
					if err != nil {
						return err
					}
					sums[p] = sum
				}
			} else if sums, err = fsys.HashAll(paths); err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sums[p], p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&weak, "weak", false, "Print weak fingerprints instead of MD5 digests")
	return cmd
}

func newGlobCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "glob <fixture> <pattern>",
		Short: "Print the paths matching a glob pattern",
		Long: `Print the paths matching a glob pattern. Patterns support ** for any
number of directories and {a,b} alternatives.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			matches, err := fsys.Glob(args[1])
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	var (
		exts    []string
		exclude []string
	)
	cmd := &cobra.Command{
		Use:   "find <fixture> [root]",
		Short: "Print the files below root, optionally filtered by extension",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			root := "/"
			if len(args) == 2 {
				root = args[1]
			}
			findOpts := filesystem.FindOptions{Extensions: exts}
			if cmd.Flags().Changed("exclude") {
				findOpts.ExcludedDirs = append([]string{}, exclude...)
			}
			for p, err := range fsys.FindFiles(root, findOpts) {
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "Extensions to match, such as .go (default all)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil,
		"Directory names not to descend into (default .git and cache directories)")
	return cmd
}

func newFindEmptyCmd(opts *rootOptions) *cobra.Command {
	var (
		recursive bool
		remove    bool
	)
	cmd := &cobra.Command{
		Use:   "find-empty <fixture> [root]",
		Short: "Print the empty directories below root",
		Long: `Print the empty directories below root, deepest first. Without --recursive
only root itself is considered. With --remove each reported directory is
removed before the search goes on, so directories holding only empty
directories are reported and removed as well.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			root := "/"
			if len(args) == 2 {
				root = args[1]
			}
			for p, err := range fsys.FindEmptyDirs(root, recursive) {
				if err != nil {
					return err
				}
				if remove && p != "/" && !fsys.TryRmdir(p) {
					return fmt.Errorf("failed to remove %s", p)
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Search below root, not just root itself")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove each empty directory as it is found")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <fixture> [path]",
		Short: "Print the subtree at path as a fixture",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			defer fsys.Close()

			p := "/"
			if len(args) == 2 {
				if p, err = absPath(fsys, args[1]); err != nil {
					return err
				}
			}
			tree, err := fsys.Snapshot(p)
			if err != nil {
				return err
			}
			if tree.Kind != filesystem.KindDir {
				return fmt.Errorf("export %s: %w", p, filesystem.NotADirectory)
			}
			data, err := fixture.Encode(fixture.FromTree(p, tree), fixture.Format(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", string(fixture.YAML), "Output format, yaml or json")
	return cmd
}
