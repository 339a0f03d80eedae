package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
)

func listArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	contents := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar read: %v", err)
		}
		contents[hdr.Name] = string(data)
	}
	return contents
}

func TestWriteTreeFiltersEntries(t *testing.T) {
	root := filepath.Join(t.TempDir(), "www")
	files := map[string]string{
		"index.php":       "<?php",
		"error.log":       "boom",
		"upload/a.jpg":    "jpeg",
		"upload/b.tmp":    "tmp",
		"bitrix/conf.php": "cfg",
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	dst := filepath.Join(t.TempDir(), "bitrix_files.tar.gz")
	cls := catalog.NewClassifier([]string{"*.log", "*.tmp"})
	cat, err := WriteTree(dst, root, cls)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	contents := listArchive(t, dst)

	for _, want := range []string{"www/", "www/index.php", "www/upload/", "www/upload/a.jpg", "www/bitrix/conf.php"} {
		if _, ok := contents[want]; !ok {
			t.Errorf("archive missing %q: %v", want, contents)
		}
	}
	for _, banned := range []string{"www/error.log", "www/upload/b.tmp"} {
		if _, ok := contents[banned]; ok {
			t.Errorf("archive must not contain %q", banned)
		}
	}
	if contents["www/index.php"] != "<?php" {
		t.Errorf("file content = %q", contents["www/index.php"])
	}

	// The same pass produced the catalog.
	if cat.Stats.ExcludedFiles != 2 {
		t.Errorf("ExcludedFiles = %d, want 2", cat.Stats.ExcludedFiles)
	}
	if cat.Stats.IncludedFiles != 3 {
		t.Errorf("IncludedFiles = %d, want 3", cat.Stats.IncludedFiles)
	}
}

func TestWritePathsKeepsOwnNames(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "nginx.conf")
	if err := os.WriteFile(cfg, []byte("server {}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "system_configs.tar.gz")
	if err := WritePaths(dst, []string{cfg}); err != nil {
		t.Fatalf("WritePaths: %v", err)
	}

	contents := listArchive(t, dst)
	want := cfg[1:] // leading slash stripped
	if contents[want] != "server {}" {
		t.Errorf("archive contents = %v, want %q", contents, want)
	}
}

func TestWriteDirContents(t *testing.T) {
	staging := t.TempDir()
	for _, name := range []string{"database_site.sql", "backup_manifest.json"} {
		if err := os.WriteFile(filepath.Join(staging, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	dst := filepath.Join(t.TempDir(), "final.tar.gz")
	if err := WriteDirContents(dst, staging); err != nil {
		t.Fatalf("WriteDirContents: %v", err)
	}

	contents := listArchive(t, dst)
	for _, name := range []string{"database_site.sql", "backup_manifest.json"} {
		if contents[name] != name {
			t.Errorf("missing or wrong top-level entry %q: %v", name, contents)
		}
	}
}
