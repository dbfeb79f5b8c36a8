package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zxul767/filesystem"
	"github.com/zxul767/filesystem/config"
	"github.com/zxul767/filesystem/fixture"
	"github.com/zxul767/filesystem/internal/util"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    int
	stderr     io.Writer
}

// execute runs vfsctl with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	opts := &rootOptions{stderr: stderr}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vfsctl",
		Short: "Inspect virtual filesystems described by fixture files",
		Long: `vfsctl builds an in-memory filesystem from a YAML or JSON fixture and runs
a single query against it: print the tree, stat or read entries, hash
files, match globs, find empty directories or export the tree back to a
fixture.`,
		SilenceUsage: true,
	}

	// Flags are case insensitive and accept underscores for dashes
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(strings.ToLower(name), "_", "-"))
	})

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML or JSON config override file, applied before the fixture's own config")
	cmd.PersistentFlags().IntVarP(&opts.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")

	cmd.AddCommand(
		newTreeCmd(opts),
		newStatCmd(opts),
		newCatCmd(opts),
		newHashCmd(opts),
		newGlobCmd(opts),
		newFindCmd(opts),
		newFindEmptyCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// load builds the filesystem described by the fixture file p. Settings are
// layered as defaults, then --config, then the fixture's config, then an
// explicit --verbose.
func (opts *rootOptions) load(cmd *cobra.Command, p string) (*filesystem.FileSystem, error) {
	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		override, err := config.LoadConfigOverrideFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(override)
	}

	f, err := fixture.Load(p)
	if err != nil {
		return nil, err
	}
	if f.Config != nil {
		cfg.Merge(f.Config)
	}
	if cmd.Flags().Changed("verbose") {
		cfg.LogLvl = config.VerbosityToLogLevel(opts.verbose)
	}

	util.InitializeLoggerWithWriter(cfg.LogLvl, opts.stderr)
	logger := util.GetLogger("vfsctl")
	logger.Debug().Str("fixture", p).Str("config", opts.configPath).Msg("Loading fixture")

	fsys := filesystem.New(cfg)
	if err := f.Apply(fsys); err != nil {
		_ = fsys.Close()
		return nil, fmt.Errorf("failed to apply fixture %s: %w", p, err)
	}
	logger.Debug().Int("nodes", fsys.Len()).Msg("Fixture loaded")
	return fsys, nil
}
