package filesystem

import (
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zxul767/filesystem/config"
)

const accessModeMask = os.O_RDONLY | os.O_WRONLY | os.O_RDWR

// MaxFileSize is the largest content a regular file may hold. Writes and
// truncates past it fail with InvalidArgument.
const MaxFileSize int64 = 1 << 32

// File is an open handle on a node. The offset is private to the handle;
// content is shared with every other handle on the same node.
type File struct {
	fsys *FileSystem
	node *node
	name string
	fh   uint64
	flag int

	mu      sync.Mutex // Protects the fields below
	offset  int64
	dirents []dirent // directory snapshot taken by the first listing call
	dirPos  int

	closed atomic.Bool
}

// OpenID opens the node id. flag takes the os.O_* access mode plus
// os.O_APPEND and os.O_TRUNC.
func (fsys *FileSystem) OpenID(id ID, flag int) (*File, error) {
	f, err := fsys.open(id, flag, "", true)
	if err != nil {
		return nil, newError("open", "", CodeOf(err))
	}
	return f, nil
}

// open checks access and registers a handle. checkPerm is false for files the
// caller has just created.
func (fsys *FileSystem) open(id ID, flag int, name string, checkPerm bool) (*File, error) {
	n, err := fsys.get(id)
	if err != nil {
		return nil, err
	}
	acc := flag & accessModeMask
	switch n.kind {
	case KindSymlink:
		return nil, OperationNotSupported
	case KindDir:
		if acc != os.O_RDONLY || flag&os.O_TRUNC != 0 {
			return nil, IsADirectory
		}
	}
	if checkPerm {
		var want uint32
		switch acc {
		case os.O_RDONLY:
			want = accessRead
		case os.O_WRONLY:
			want = accessWrite
		case os.O_RDWR:
			want = accessRead | accessWrite
		default:
			return nil, InvalidArgument
		}
		if flag&os.O_TRUNC != 0 {
			want |= accessWrite
		}
		if err := fsys.access(n, want); err != nil {
			return nil, err
		}
	}

	n.attrMu.Lock()
	if n.freed {
		n.attrMu.Unlock()
		return nil, NotFound
	}
	n.opens++
	if flag&os.O_TRUNC != 0 && n.kind == KindFile && len(n.data) > 0 {
		n.data = n.data[:0]
		n.setSizeLocked(0)
		n.touchLocked(fsys.now(), true)
	}
	n.attrMu.Unlock()

	if name == "" && id == RootID {
		name = "/"
	}
	f := &File{fsys: fsys, node: n, name: name, flag: flag}
	f.fh = fsys.storeHandle(f)
	fsys.logger("Open").Trace().Uint64("id", uint64(id)).Uint64("fh", f.fh).Int("flag", flag).Msg("Opened handle")
	return f, nil
}

// storeHandle registers f under the next free handle number. Numbering
// wraps after config.MaxFH and never hands out 0.
func (fsys *FileSystem) storeHandle(f *File) uint64 {
	for {
		fh := fsys.lastFH.Add(1) % (config.MaxFH + 1)
		if fh == 0 {
			continue
		}
		if _, loaded := fsys.handles.LoadOrStore(fh, f); !loaded {
			return fh
		}
	}
}

// Fd returns the handle number, unique among the open handles of the
// filesystem.
func (f *File) Fd() uintptr {
	return uintptr(f.fh)
}

// Name returns the name the file was opened with.
func (f *File) Name() string {
	return f.name
}

// ID returns the identity of the open node.
func (f *File) ID() ID {
	return f.node.id
}

func (f *File) readable() bool {
	return f.flag&accessModeMask != os.O_WRONLY
}

func (f *File) writable() bool {
	return f.flag&accessModeMask != os.O_RDONLY
}

func (f *File) fail(op string, code Code) error {
	return newError(op, f.name, code)
}

// Read reads up to len(p) bytes from the current offset. It returns io.EOF
// only once the offset is at the end of the content.
func (f *File) Read(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, f.fail("read", HandleInvalid)
	}
	if err := f.checkRead("read"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, eof := f.readAt(p, f.offset)
	f.offset += int64(n)
	if n == 0 && eof && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt reads len(p) bytes at off without moving the offset.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed.Load() {
		return 0, f.fail("read", HandleInvalid)
	}
	if err := f.checkRead("read"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, f.fail("read", InvalidArgument)
	}
	n, _ := f.readAt(p, off)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) checkRead(op string) error {
	if f.node.kind == KindDir {
		return f.fail(op, IsADirectory)
	}
	if !f.readable() {
		return f.fail(op, PermissionDenied)
	}
	return nil
}

// readAt copies content at off into p and reports whether the end was reached.
func (f *File) readAt(p []byte, off int64) (int, bool) {
	n := f.node
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	if off >= int64(len(n.data)) {
		return 0, true
	}
	c := copy(p, n.data[off:])
	return c, off+int64(c) >= int64(len(n.data))
}

// Write writes p at the current offset, or at the end of the content for
// handles opened with os.O_APPEND.
func (f *File) Write(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, f.fail("write", HandleInvalid)
	}
	if err := f.checkWrite("write"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	off := f.offset
	if f.flag&os.O_APPEND != 0 {
		off = -1
	}
	end, err := f.writeAt(p, off)
	if err != nil {
		return 0, f.fail("write", CodeOf(err))
	}
	f.offset = end
	return len(p), nil
}

// WriteAt writes p at off without moving the offset. Content is extended
// with zeros when off is past the end.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.closed.Load() {
		return 0, f.fail("write", HandleInvalid)
	}
	if err := f.checkWrite("write"); err != nil {
		return 0, err
	}
	if off < 0 || f.flag&os.O_APPEND != 0 {
		return 0, f.fail("write", InvalidArgument)
	}
	if _, err := f.writeAt(p, off); err != nil {
		return 0, f.fail("write", CodeOf(err))
	}
	return len(p), nil
}

// WriteString is Write for a string.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) checkWrite(op string) error {
	if f.node.kind == KindDir {
		return f.fail(op, IsADirectory)
	}
	if !f.writable() {
		return f.fail(op, PermissionDenied)
	}
	return nil
}

// writeAt stores p at off, or appends when off is negative, and returns the
// offset just past the written bytes. Content never grows past MaxFileSize.
func (f *File) writeAt(p []byte, off int64) (int64, error) {
	n := f.node
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	if off < 0 {
		off = int64(len(n.data))
	}
	if len(p) == 0 {
		return off, nil
	}
	if off > MaxFileSize-int64(len(p)) {
		return 0, InvalidArgument
	}
	end := off + int64(len(p))
	if size := int64(len(n.data)); end > size {
		n.data = slices.Grow(n.data, int(end-size))[:end]
		// Bytes between the old end and off may hold stale content left
		// behind by an earlier truncate.
		if off > size {
			clear(n.data[size:off])
		}
	}
	copy(n.data[off:], p)
	n.setSizeLocked(len(n.data))
	n.touchLocked(f.fsys.now(), true)
	return end, nil
}

// Seek sets the offset for the next Read or Write. Seeking a directory to
// the start restarts the listing.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed.Load() {
		return 0, f.fail("seek", HandleInvalid)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.offset
	case io.SeekEnd:
		f.node.attrMu.RLock()
		base = int64(len(f.node.data))
		f.node.attrMu.RUnlock()
	default:
		return 0, f.fail("seek", InvalidArgument)
	}
	pos := base + offset
	if pos < 0 {
		return 0, f.fail("seek", InvalidArgument)
	}
	f.offset = pos
	if f.node.kind == KindDir && pos == 0 {
		f.dirents, f.dirPos = nil, 0
	}
	return pos, nil
}

// Truncate changes the size of the content, zero filling when it grows.
// The offset is left unchanged.
func (f *File) Truncate(size int64) error {
	if f.closed.Load() {
		return f.fail("truncate", HandleInvalid)
	}
	if err := f.checkWrite("truncate"); err != nil {
		return err
	}
	if err := f.fsys.truncate(f.node, size); err != nil {
		return f.fail("truncate", CodeOf(err))
	}
	return nil
}

// truncate resizes a regular file's content.
func (fsys *FileSystem) truncate(n *node, size int64) error {
	if size < 0 || size > MaxFileSize {
		return InvalidArgument
	}
	if n.kind == KindDir {
		return IsADirectory
	}
	if n.kind != KindFile {
		return InvalidArgument
	}
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	if cur := int64(len(n.data)); size > cur {
		n.data = slices.Grow(n.data, int(size-cur))[:size]
		clear(n.data[cur:])
	} else {
		n.data = n.data[:size]
	}
	n.setSizeLocked(len(n.data))
	n.touchLocked(fsys.now(), true)
	return nil
}

// Close releases the handle. The node is freed here if it was unlinked
// while open. A second Close returns HandleInvalid.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return f.fail("close", HandleInvalid)
	}
	f.fsys.handles.Delete(f.fh)
	n := f.node
	n.attrMu.Lock()
	if n.opens > 0 {
		n.opens--
	}
	n.attrMu.Unlock()
	f.fsys.store.release(n)
	f.fsys.logger("Close").Trace().Uint64("id", uint64(n.id)).Uint64("fh", f.fh).Msg("Closed handle")
	return nil
}

// Sync is a no-op; content lives in memory only.
func (f *File) Sync() error {
	if f.closed.Load() {
		return f.fail("sync", HandleInvalid)
	}
	return nil
}

// Stat describes the open node, even after it was unlinked.
func (f *File) Stat() (fs.FileInfo, error) {
	if f.closed.Load() {
		return nil, f.fail("stat", HandleInvalid)
	}
	return &FileInfo{name: path.Base(f.name), stat: statNode(f.node)}, nil
}

// ReadDir lists the directory in name order, following the fs.ReadDirFile
// contract: with n > 0 at most n entries and io.EOF once exhausted, otherwise
// everything left.
func (f *File) ReadDir(n int) ([]fs.DirEntry, error) {
	ents, err := f.nextEntries("readdir", n)
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, 0, len(ents))
	for _, ent := range ents {
		info, err := f.fsys.entryInfo(ent)
		if err != nil {
			// Removed since the snapshot was taken.
			continue
		}
		out = append(out, DirEntry{info: info})
	}
	return out, nil
}

// Readdir is ReadDir returning FileInfo values, as os.File does.
func (f *File) Readdir(count int) ([]fs.FileInfo, error) {
	ents, err := f.ReadDir(count)
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, len(ents))
	for i, ent := range ents {
		infos[i] = ent.(DirEntry).info
	}
	return infos, nil
}

// Readdirnames is ReadDir returning only entry names.
func (f *File) Readdirnames(n int) ([]string, error) {
	ents, err := f.nextEntries("readdirnames", n)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ents))
	for i, ent := range ents {
		names[i] = ent.name
	}
	return names, nil
}

func (f *File) nextEntries(op string, n int) ([]dirent, error) {
	if f.closed.Load() {
		return nil, f.fail(op, HandleInvalid)
	}
	if f.node.kind != KindDir {
		return nil, f.fail(op, NotADirectory)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirents == nil {
		f.dirents = f.node.entries()
	}
	rest := f.dirents[f.dirPos:]
	if n <= 0 {
		f.dirPos = len(f.dirents)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	rest = rest[:min(n, len(rest))]
	f.dirPos += len(rest)
	return rest, nil
}
