package s3store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/logging"
)

func TestMirrorCopiesAndVerifies(t *testing.T) {
	src := newFakeStore("work")
	dst := newFakeStore("backups")
	now := time.Now()
	for i := 0; i < 120; i++ {
		src.put(fmt.Sprintf("upload/iblock/img_%03d.jpg", i), 100, now)
	}

	m := NewMirror(src, dst, "s3-work-file-storage", logging.Nop{})
	res, err := m.Run(context.Background(), "20260831_030000")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Verified {
		t.Error("snapshot should verify")
	}
	if res.Copied != 120 || res.SrcCount != 120 || res.DstCount != 120 {
		t.Errorf("counts = %+v, want 120 across the board", res)
	}
	if _, ok := dst.objects["s3-work-file-storage/20260831_030000/upload/iblock/img_000.jpg"]; !ok {
		t.Error("snapshot is missing a mirrored object")
	}
}

func TestMirrorPartialFailureReportsUnverified(t *testing.T) {
	src := newFakeStore("work")
	dst := newFakeStore("backups")
	now := time.Now()
	for i := 0; i < 120; i++ {
		src.put(fmt.Sprintf("upload/img_%03d.jpg", i), 100, now)
	}
	src.failCopy["upload/img_050.jpg"] = true

	m := NewMirror(src, dst, "s3-work-file-storage", logging.Nop{})
	res, err := m.Run(context.Background(), "20260831_030000")
	if err == nil {
		t.Fatal("Run should report the incomplete snapshot")
	}
	if res.Verified {
		t.Error("partial snapshot must not verify")
	}
	if res.Copied != 119 || res.Skipped != 1 {
		t.Errorf("copied = %d, skipped = %d, want 119/1", res.Copied, res.Skipped)
	}
	// The partial snapshot stays in place for inspection.
	if res.DstCount != 119 {
		t.Errorf("destination holds %d objects, want 119", res.DstCount)
	}
}

func TestMirrorEmptySource(t *testing.T) {
	src := newFakeStore("work")
	dst := newFakeStore("backups")

	res, err := NewMirror(src, dst, "s3-work-file-storage", logging.Nop{}).Run(context.Background(), "20260831_030000")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Verified || res.Copied != 0 {
		t.Errorf("empty source should verify trivially, got %+v", res)
	}
}

func TestMirrorMissingBucketAborts(t *testing.T) {
	src := newFakeStore("work")
	src.put("upload/a.jpg", 100, time.Now())
	dst := newFakeStore("backups")
	dst.missing = true

	_, err := NewMirror(src, dst, "s3-work-file-storage", logging.Nop{}).Run(context.Background(), "20260831_030000")
	if err == nil {
		t.Fatal("Run should fail before copying when a bucket is missing")
	}
	if len(dst.objects) != 0 {
		t.Error("nothing should have been copied")
	}
}

func TestUploadArtifactSetsMetadata(t *testing.T) {
	store := newFakeStore("backups")
	artifact := t.TempDir() + "/bitrix24_backup_20260831_030000.tar.gz"
	if err := writeTestFile(artifact); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	key, err := UploadArtifact(context.Background(), store, "backups", artifact, "/var/www/bitrix", logging.Nop{})
	if err != nil {
		t.Fatalf("UploadArtifact: %v", err)
	}
	if key != "backups/bitrix24_backup_20260831_030000.tar.gz" {
		t.Errorf("key = %q", key)
	}

	md := store.metadata[key]
	if md["backup-version"] != "2.0" {
		t.Errorf("backup-version = %q", md["backup-version"])
	}
	if md["bitrix-root"] != "/var/www/bitrix" {
		t.Errorf("bitrix-root = %q", md["bitrix-root"])
	}
	if md["created-timestamp"] == "" || md["server-hostname"] == "" {
		t.Errorf("missing provenance metadata: %v", md)
	}
}

func TestUploadArtifactMissingBucket(t *testing.T) {
	store := newFakeStore("backups")
	store.missing = true

	_, err := UploadArtifact(context.Background(), store, "backups", "/nonexistent", "/var/www/bitrix", logging.Nop{})
	if err == nil {
		t.Fatal("UploadArtifact should fail when the bucket is missing")
	}
}
