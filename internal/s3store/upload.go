package s3store

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
	"github.com/ashevtsov/bitrix-backup/internal/logging"
)

// UploadArtifact uploads a local backup archive into the configured
// backup path of the store, tagging it with provenance metadata.
// Returns the object key.
func UploadArtifact(ctx context.Context, store ObjectStore, backupPath, artifactPath, bitrixRoot string, log logging.Logger) (string, error) {
	ok, err := store.BucketExists(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("bucket %s does not exist", store.Bucket())
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	key := path.Join(backupPath, filepath.Base(artifactPath))
	metadata := map[string]string{
		"backup-version":    catalog.BackupVersion,
		"created-timestamp": time.Now().Format(time.RFC3339),
		"server-hostname":   hostname,
		"bitrix-root":       bitrixRoot,
	}

	log.Info("uploading %s (%d bytes) to %s/%s", filepath.Base(artifactPath), info.Size(), store.Bucket(), key)
	if err := store.Upload(ctx, key, artifactPath, metadata); err != nil {
		return "", err
	}
	log.Info("upload complete: %s/%s", store.Bucket(), key)
	return key, nil
}
