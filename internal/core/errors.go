package core

import (
	"errors"
	"fmt"
)

// ErrNoSelection is returned by peak detection when no maxima were found.
// It is a normal outcome: the channel simply has no spots.
var ErrNoSelection = errors.New("no selection")

// DirectoryAccessError reports an input or output directory that cannot be
// read or created. It aborts the run before any item is processed.
type DirectoryAccessError struct {
	Path string
	Err  error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("cannot access directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error { return e.Err }

// IOWriteError reports a single output that could not be written. The batch
// continues with the next item.
type IOWriteError struct {
	Path string
	Err  error
}

func (e *IOWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOWriteError) Unwrap() error { return e.Err }

// UnmatchedPairWarning reports an archive with no corresponding image.
type UnmatchedPairWarning struct {
	Archive  string
	BaseName string
}

func (e *UnmatchedPairWarning) Error() string {
	return fmt.Sprintf("no image matches archive %s (base name %q)", e.Archive, e.BaseName)
}

// IsDirectoryAccess reports whether err is (or wraps) a DirectoryAccessError.
func IsDirectoryAccess(err error) bool {
	var target *DirectoryAccessError
	return errors.As(err, &target)
}
