package runner

import "github.com/ashevtsov/bitrix-backup/internal/retention"

// ArtifactName returns the final archive name for a run timestamp,
// e.g. bitrix24_backup_20260831_030000.tar.gz.
func ArtifactName(timestamp string) string {
	return retention.ArtifactPrefix + timestamp + retention.ArtifactSuffix
}
