// Package archive streams gzip-compressed tar artifacts. Membership in the
// filtered tree archive is decided per entry by the catalog classifier; this
// package only moves bytes.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
)

// WriteTree walks root with the classifier and streams every included entry
// into a tar.gz at dst. Entry names carry the root's own directory name as
// their first segment. Returns the catalog built during the same pass.
func WriteTree(dst, root string, cls *catalog.Classifier) (*catalog.Catalog, error) {
	w, err := newWriter(dst)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(root)

	rootInfo, err := os.Stat(root)
	if err != nil {
		w.abort()
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if err := w.addDir(base, rootInfo); err != nil {
		w.abort()
		return nil, err
	}

	cat, err := cls.Walk(root, func(absPath string, e catalog.Entry, info fs.FileInfo) error {
		name := path.Join(base, e.Path)
		if e.Type == catalog.TypeDirectory {
			return w.addDir(name, info)
		}
		return w.addFile(name, absPath, info)
	})
	if err != nil {
		w.abort()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return cat, nil
}

// WritePaths packs the given files and directories into a tar.gz, keeping
// their own (rootless) paths as entry names. Used for system configs.
func WritePaths(dst string, paths []string) error {
	w, err := newWriter(dst)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := w.addTree(p, strings.TrimPrefix(filepath.ToSlash(p), "/")); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

// WriteDirContents packs every entry of dir at the top level of a tar.gz.
// Used for the final backup artifact.
func WriteDirContents(dst, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	w, err := newWriter(dst)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.addTree(filepath.Join(dir, e.Name()), e.Name()); err != nil {
			w.abort()
			return err
		}
	}
	return w.Close()
}

// writer layers tar over gzip over a file, closing them in order.
type writer struct {
	path string
	f    *os.File
	gz   *gzip.Writer
	tw   *tar.Writer
}

func newWriter(path string) (*writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	gz := gzip.NewWriter(f)
	return &writer{path: path, f: f, gz: gz, tw: tar.NewWriter(gz)}, nil
}

func (w *writer) Close() error {
	if err := w.tw.Close(); err != nil {
		w.abort()
		return fmt.Errorf("closing tar stream: %w", err)
	}
	if err := w.gz.Close(); err != nil {
		w.abort()
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// abort drops the partial archive; a truncated artifact is worse than none.
func (w *writer) abort() {
	_ = w.f.Close()
	_ = os.Remove(w.path)
}

func (w *writer) addDir(name string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	hdr.Name = name + "/"
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}
	return nil
}

func (w *writer) addFile(name, absPath string, info fs.FileInfo) error {
	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		var err error
		if link, err = os.Readlink(absPath); err != nil {
			return fmt.Errorf("reading link %s: %w", name, err)
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w.tw, f); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// addTree adds path (file or whole directory) under the entry name.
func (w *writer) addTree(p, name string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}

	if !info.IsDir() {
		return w.addFile(name, p, info)
	}

	if err := w.addDir(name, info); err != nil {
		return err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return fmt.Errorf("reading %s: %w", p, err)
	}
	for _, e := range entries {
		if err := w.addTree(filepath.Join(p, e.Name()), path.Join(name, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
