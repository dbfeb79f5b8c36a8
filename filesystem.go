package filesystem

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"github.com/zxul767/filesystem/config"
	"github.com/zxul767/filesystem/internal/util"
)

// Permission bits requested from access.
const (
	accessRead  = 0o4
	accessWrite = 0o2
	accessExec  = 0o1
)

// Clock supplies timestamps for node attributes.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option customizes a FileSystem built by New.
type Option func(*FileSystem)

// WithClock makes the filesystem read time from c instead of the wall clock.
func WithClock(c Clock) Option {
	return func(fsys *FileSystem) {
		if c != nil {
			fsys.clock = c
		}
	}
}

// FileSystem is an in-memory tree of files, directories and symbolic links.
// It is safe for concurrent use.
type FileSystem struct {
	cfg      *config.Config
	id       uuid.UUID
	store    *store
	cwd      atomic.Uint64             // ID of the working directory
	lastFH   atomic.Uint64             // Last handle number assigned
	handles  *xsync.Map[uint64, *File] // open handles by number
	loggers  *xsync.Map[string, *zerolog.Logger]
	renameMu sync.Mutex                // serializes cross-directory renames
	clock    Clock
	closed   atomic.Bool
}

// New builds an empty filesystem holding only the root directory and
// cfg.Cwd, which becomes the working directory. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fsys := &FileSystem{
		cfg:     cfg,
		id:      uuid.New(),
		handles: xsync.NewMap[uint64, *File](),
		loggers: xsync.NewMap[string, *zerolog.Logger](),
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(fsys)
	}
	fsys.store = newStore(cfg.BlockSize, *fsys.logger("store"))

	rootPerm := cfg.DefaultDirMode &^ cfg.Umask
	root := fsys.store.allocate(KindDir, rootPerm, cfg.Uid, cfg.Gid, fsys.clock.Now(), func(n *node) {
		n.parent.Store(uint64(n.id))
	})
	fsys.cwd.Store(uint64(root.id))

	logger := fsys.logger("New")
	if cfg.Cwd != "" && cfg.Cwd != "/" {
		if err := fsys.MkdirAll(cfg.Cwd, cfg.DefaultDirMode); err != nil {
			logger.Error().Err(err).Str("cwd", cfg.Cwd).Msg("Failed to create working directory")
		} else if err := fsys.Chdir(cfg.Cwd); err != nil {
			logger.Error().Err(err).Str("cwd", cfg.Cwd).Msg("Failed to enter working directory")
		}
	}
	logger.Debug().Str("cwd", cfg.Cwd).Msg("Created filesystem")
	return fsys
}

// ID returns the unique id of this filesystem instance.
func (fsys *FileSystem) ID() uuid.UUID {
	return fsys.id
}

// Root returns the identity of the root directory.
func (fsys *FileSystem) Root() ID {
	return RootID
}

// Config returns the configuration the filesystem was built with.
func (fsys *FileSystem) Config() *config.Config {
	return fsys.cfg
}

// Len reports the number of live nodes, including unlinked nodes kept alive
// by open handles.
func (fsys *FileSystem) Len() int {
	return fsys.store.size()
}

// Close tears the filesystem down. Every handle is invalidated and every node
// freed; later operations fail with NotFound or HandleInvalid.
func (fsys *FileSystem) Close() error {
	if !fsys.closed.CompareAndSwap(false, true) {
		return nil
	}
	handles := 0
	fsys.handles.Range(func(fh uint64, f *File) bool {
		f.closed.Store(true)
		fsys.handles.Delete(fh)
		handles++
		return true
	})
	freed := fsys.store.clear()
	fsys.logger("Close").Debug().Int("nodes", freed).Int("handles", handles).Msg("Closed filesystem")
	return nil
}

// logger returns a component logger tagged with this filesystem's id.
// Loggers are cached per component.
func (fsys *FileSystem) logger(component string) *zerolog.Logger {
	if l, ok := fsys.loggers.Load(component); ok {
		return l
	}
	l := util.GetLogger(component).With().Str("fs", fsys.id.String()).Logger()
	cached, _ := fsys.loggers.LoadOrStore(component, &l)
	return cached
}

func (fsys *FileSystem) now() time.Time {
	return fsys.clock.Now()
}

// get returns the live node for id or NotFound.
func (fsys *FileSystem) get(id ID) (*node, error) {
	n, ok := fsys.store.get(id)
	if !ok {
		return nil, NotFound
	}
	return n, nil
}

// getDir returns the live directory for id.
func (fsys *FileSystem) getDir(id ID) (*node, error) {
	n, err := fsys.get(id)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDir {
		return nil, NotADirectory
	}
	return n, nil
}

// access checks want (a mask of accessRead, accessWrite and accessExec)
// against n's owner, group and other bits in that order. Uid 0 passes every
// check.
func (fsys *FileSystem) access(n *node, want uint32) error {
	if !fsys.cfg.EnforcePermissions || fsys.cfg.Uid == 0 {
		return nil
	}
	n.attrMu.RLock()
	mode, uid, gid := n.attr.Mode, n.attr.Uid, n.attr.Gid
	n.attrMu.RUnlock()

	bits := mode
	switch {
	case uid == fsys.cfg.Uid:
		bits = mode >> 6
	case gid == fsys.cfg.Gid:
		bits = mode >> 3
	}
	if bits&want != want {
		return PermissionDenied
	}
	return nil
}

// owns reports whether the caller may change n's metadata.
func (fsys *FileSystem) owns(n *node) bool {
	if !fsys.cfg.EnforcePermissions || fsys.cfg.Uid == 0 {
		return true
	}
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return n.attr.Uid == fsys.cfg.Uid
}
