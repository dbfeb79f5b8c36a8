package filesystem

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// EmptyMD5 is the MD5 digest of no bytes.
const EmptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

// SmallChunkSize is the head and tail length WeakHash samples.
const SmallChunkSize = 4 * 1024

// hashWorkers bounds HashAll's concurrency.
const hashWorkers = 8

var md5Pattern = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)

// MD5 returns the hex MD5 digest of the content of the file p.
func (fsys *FileSystem) MD5(p string) (string, error) {
	n, err := fsys.readableFile("md5", p)
	if err != nil {
		return "", err
	}
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	if len(n.data) == 0 {
		return EmptyMD5, nil
	}
	sum := md5.Sum(n.data)
	return hex.EncodeToString(sum[:]), nil
}

// WeakHash is a cheap content fingerprint: the MD5 of the whole content up
// to SmallChunkSize bytes, otherwise of the first and last SmallChunkSize
// bytes.
func (fsys *FileSystem) WeakHash(p string) (string, error) {
	n, err := fsys.readableFile("weakhash", p)
	if err != nil {
		return "", err
	}
	h := md5.New()
	n.attrMu.RLock()
	if len(n.data) <= SmallChunkSize {
		h.Write(n.data)
	} else {
		h.Write(n.data[:SmallChunkSize])
		h.Write(n.data[len(n.data)-SmallChunkSize:])
	}
	n.attrMu.RUnlock()
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (fsys *FileSystem) readableFile(op, p string) (*node, error) {
	n, _, err := fsys.lookupPath(p, true)
	if err == nil {
		err = checkKind(n.kind, KindFile)
	}
	if err == nil {
		err = fsys.access(n, accessRead)
	}
	if err != nil {
		return nil, newError(op, p, CodeOf(err))
	}
	return n, nil
}

// LooksLikeMD5 reports whether s has the shape of a hex MD5 digest.
func LooksLikeMD5(s string) bool {
	return md5Pattern.MatchString(s)
}

// HashAll computes MD5 for every path concurrently. It fails with the first
// error encountered.
func (fsys *FileSystem) HashAll(paths []string) (map[string]string, error) {
	sums := xsync.NewMap[string, string]()
	var g errgroup.Group
	g.SetLimit(hashWorkers)
	for _, p := range paths {
		g.Go(func() error {
			sum, err := fsys.MD5(p)
			if err != nil {
				return err
			}
			sums.Store(p, sum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]string, sums.Size())
	sums.Range(func(p, sum string) bool {
		out[p] = sum
		return true
	})
	return out, nil
}
