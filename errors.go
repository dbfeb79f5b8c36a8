package filesystem

import (
	"errors"
	"io/fs"
	"syscall"
)

// Code classifies every failure reported by the filesystem.
// A Code is itself an error so callers can match with errors.Is.
type Code uint8

const (
	NotFound Code = iota + 1
	AlreadyExists
	NotADirectory
	IsADirectory
	NotEmpty
	TooManyLinks            // symlink cycle or chain longer than the expansion limit
	CrossDeviceOrCyclicMove // directory moved below itself
	PermissionDenied
	InvalidName // empty, "." / "..", or separator containing entry name
	HandleInvalid
	OperationNotSupported
	InvalidArgument // bad seek, truncate size or open flags
)

func (c Code) Error() string {
	switch c {
	case NotFound:
		return "no such file or directory"
	case AlreadyExists:
		return "file exists"
	case NotADirectory:
		return "not a directory"
	case IsADirectory:
		return "is a directory"
	case NotEmpty:
		return "directory not empty"
	case TooManyLinks:
		return "too many levels of symbolic links"
	case CrossDeviceOrCyclicMove:
		return "cannot move a directory into itself"
	case PermissionDenied:
		return "permission denied"
	case InvalidName:
		return "invalid name"
	case HandleInvalid:
		return "file already closed"
	case OperationNotSupported:
		return "operation not supported"
	case InvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

func (c Code) String() string {
	return c.Error()
}

// Is reports whether c corresponds to one of the io/fs sentinel errors.
func (c Code) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return c == NotFound
	case fs.ErrExist:
		return c == AlreadyExists || c == NotEmpty
	case fs.ErrPermission:
		return c == PermissionDenied
	case fs.ErrClosed:
		return c == HandleInvalid
	case fs.ErrInvalid:
		return c == InvalidName || c == InvalidArgument
	}
	return false
}

// Errno returns the errno a kernel filesystem would report for c.
func (c Code) Errno() syscall.Errno {
	switch c {
	case NotFound:
		return syscall.ENOENT
	case AlreadyExists:
		return syscall.EEXIST
	case NotADirectory:
		return syscall.ENOTDIR
	case IsADirectory:
		return syscall.EISDIR
	case NotEmpty:
		return syscall.ENOTEMPTY
	case TooManyLinks:
		return syscall.ELOOP
	case CrossDeviceOrCyclicMove:
		return syscall.EXDEV
	case PermissionDenied:
		return syscall.EACCES
	case InvalidName, InvalidArgument:
		return syscall.EINVAL
	case HandleInvalid:
		return syscall.EBADF
	case OperationNotSupported:
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}

// PathError records a failed operation together with the path or entry name
// it was applied to.
type PathError struct {
	Op   string
	Path string
	Code Code
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Code.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Code.Error()
}

func (e *PathError) Unwrap() error {
	return e.Code
}

// CodeOf extracts the Code carried by err, or 0 if err did not originate here.
func CodeOf(err error) Code {
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return 0
}

func newError(op, path string, code Code) *PathError {
	return &PathError{Op: op, Path: path, Code: code}
}
