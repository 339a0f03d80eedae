package s3store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashevtsov/bitrix-backup/internal/logging"
)

// Mirror copies the whole work file storage bucket into a dated folder
// of the destination bucket using server-side copies.
type Mirror struct {
	src    ObjectStore
	dst    ObjectStore
	folder string // destination root, e.g. "s3-work-file-storage"
	log    logging.Logger
}

// Result reports the outcome of one mirror run.
type Result struct {
	Copied   int
	Skipped  int
	SrcCount int
	DstCount int
	Verified bool
}

func NewMirror(src, dst ObjectStore, folder string, log logging.Logger) *Mirror {
	return &Mirror{src: src, dst: dst, folder: folder, log: log}
}

// Run mirrors every source object into <folder>/<timestamp>/<key> on
// the destination, then verifies by comparing object counts. Failed
// objects are skipped and counted, not rolled back: a partial snapshot
// is reported unverified and left in place for inspection.
func (m *Mirror) Run(ctx context.Context, timestamp string) (*Result, error) {
	for _, store := range []ObjectStore{m.src, m.dst} {
		ok, err := store.BucketExists(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("bucket %s does not exist", store.Bucket())
		}
	}

	objects, err := m.src.List(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		m.log.Warn("work storage bucket %s is empty, nothing to mirror", m.src.Bucket())
		return &Result{Verified: true}, nil
	}

	dstRoot := strings.TrimRight(m.folder, "/") + "/" + timestamp + "/"
	m.log.Info("mirroring %d objects from %s to %s/%s", len(objects), m.src.Bucket(), m.dst.Bucket(), dstRoot)

	res := &Result{SrcCount: len(objects)}
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := m.dst.Copy(ctx, m.src, obj.Key, dstRoot+obj.Key); err != nil {
			m.log.Error("copy %s failed: %v", obj.Key, err)
			res.Skipped++
			continue
		}
		res.Copied++
		if (i+1)%100 == 0 {
			m.log.Info("mirrored %d/%d objects", i+1, len(objects))
		}
	}

	copied, err := m.dst.List(ctx, dstRoot)
	if err != nil {
		return res, fmt.Errorf("verify snapshot: %w", err)
	}
	res.DstCount = len(copied)
	res.Verified = res.DstCount == res.SrcCount

	if !res.Verified {
		m.log.Error("snapshot %s incomplete: %d of %d objects copied", timestamp, res.DstCount, res.SrcCount)
		return res, fmt.Errorf("snapshot %s has %d objects, source has %d", timestamp, res.DstCount, res.SrcCount)
	}
	m.log.Info("snapshot %s verified: %d objects", timestamp, res.DstCount)
	return res, nil
}
