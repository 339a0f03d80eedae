// Package fs is the filesystem abstraction used for artifact staging: the
// packaged backup is copied under a temporary name and renamed into place.
package fs

import "context"

type FS interface {
	CopyFile(ctx context.Context, src, dst string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	MkdirAll(path string) error
	Remove(path string) error
	RemoveAll(path string) error
}
