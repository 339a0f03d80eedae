package s3store

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/ashevtsov/bitrix-backup/internal/logging"
	"github.com/ashevtsov/bitrix-backup/internal/retention"
)

// RotateObjects keeps the newest keep backup archives under prefix and
// deletes the rest, oldest first. Objects that do not look like backup
// artifacts are left alone.
func RotateObjects(ctx context.Context, store ObjectStore, prefix string, keep int, log logging.Logger) (int, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var backups []ObjectInfo
	for _, obj := range objects {
		base := path.Base(obj.Key)
		if strings.HasPrefix(base, retention.ArtifactPrefix) && strings.HasSuffix(base, retention.ArtifactSuffix) {
			backups = append(backups, obj)
		}
	}

	if len(backups) <= keep {
		log.Info("remote backups in %s: %d, max %d, nothing to rotate", store.Bucket(), len(backups), keep)
		return 0, nil
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].LastModified.Before(backups[j].LastModified)
	})

	removed := 0
	for _, obj := range backups[:len(backups)-keep] {
		if err := store.Remove(ctx, obj.Key); err != nil {
			return removed, err
		}
		log.Info("removed old remote backup %s/%s", store.Bucket(), obj.Key)
		removed++
	}
	return removed, nil
}

// IsSnapshotName reports whether name is a dated snapshot folder name
// of the form 20060102_150405.
func IsSnapshotName(name string) bool {
	if len(name) != 15 || name[8] != '_' {
		return false
	}
	if strings.Count(name, "_") != 1 {
		return false
	}
	for i, r := range name {
		if i == 8 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RotateFolders keeps the newest keep dated snapshot folders under root
// and deletes the older ones with all their contents. Snapshot names
// embed their creation time, so lexical order is chronological order.
func RotateFolders(ctx context.Context, store ObjectStore, root string, keep int, log logging.Logger) (int, error) {
	objects, err := store.List(ctx, strings.TrimRight(root, "/")+"/")
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	prefix := strings.TrimRight(root, "/") + "/"
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		name, _, found := strings.Cut(rest, "/")
		if found && IsSnapshotName(name) {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	if len(names) <= keep {
		log.Info("snapshot folders under %s/%s: %d, max %d, nothing to rotate", store.Bucket(), root, len(names), keep)
		return 0, nil
	}
	sort.Strings(names)

	removed := 0
	for _, name := range names[:len(names)-keep] {
		n, err := store.RemovePrefix(ctx, prefix+name+"/")
		if err != nil {
			return removed, err
		}
		log.Info("removed snapshot folder %s/%s%s (%d objects)", store.Bucket(), prefix, name, n)
		removed++
	}
	return removed, nil
}
