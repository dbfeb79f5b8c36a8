// Package filesystem is an in-memory virtual filesystem with POSIX-like
// semantics.
//
// A [FileSystem] owns a tree of regular files, directories and symbolic links
// held entirely in memory. Every node has a stable [ID] that survives renames and
// is never reused, so callers can resolve a path once and keep operating on the
// node while other goroutines rearrange the tree.
//
// The API comes in two layers:
//   - identity based: [FileSystem.Resolve], [FileSystem.CreateAt],
//     [FileSystem.UnlinkAt], [FileSystem.RmdirAt], [FileSystem.RenameAt],
//     [FileSystem.LinkAt], [FileSystem.OpenID] and [FileSystem.StatID]. The
//     *At operations name an entry by its parent directory and entry name,
//     like the openat(2) family;
//   - path based conveniences built on top of them, shaped after package os
//     ([FileSystem.Mkdir], [FileSystem.WriteFile], [FileSystem.Remove], ...).
//
// Failures are always a [*PathError] carrying a [Code]. Codes satisfy
// errors.Is against their io/fs counterparts:
//
//	if errors.Is(err, fs.ErrNotExist) { ... }
//	if errors.Is(err, filesystem.TooManyLinks) { ... }
//
// Independent filesystems can be built side by side with [New]; nothing is
// shared between instances.
package filesystem
