package fs

import (
	"context"
	"fmt"
	"io"
	"os"
)

// OSFS backs FS with the local filesystem. Copy and rename retry on
// transient errors so a busy backup volume does not fail a finished run.
type OSFS struct{}

func New() *OSFS {
	return &OSFS{}
}

func (o *OSFS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (o *OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (o *OSFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (o *OSFS) CopyFile(ctx context.Context, src, dst string) error {
	return retry(ctx, "copy", func() error {
		return copyOnce(src, dst)
	})
}

func (o *OSFS) Rename(ctx context.Context, oldPath, newPath string) error {
	return retry(ctx, "rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}

func copyOnce(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Sync()
}
