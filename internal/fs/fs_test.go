package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyAndRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tar.gz")
	if err := os.WriteFile(src, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	f := New()
	ctx := context.Background()

	tmp := filepath.Join(dir, ".tmp-final.tar.gz")
	if err := f.CopyFile(ctx, src, tmp); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	final := filepath.Join(dir, "final.tar.gz")
	if err := f.Rename(ctx, tmp, final); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if string(data) != "artifact" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("tmp file still present after rename")
	}
}

func TestCopyMissingSourceFailsFast(t *testing.T) {
	f := New()
	err := f.CopyFile(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
	if err == nil {
		t.Fatal("expected error")
	}
}
