// Package runner drives a full backup run: database dump, file
// archive, manifests, final artifact, storage management and
// notification.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/archive"
	"github.com/ashevtsov/bitrix-backup/internal/catalog"
	"github.com/ashevtsov/bitrix-backup/internal/config"
	"github.com/ashevtsov/bitrix-backup/internal/dump"
	"github.com/ashevtsov/bitrix-backup/internal/fs"
	"github.com/ashevtsov/bitrix-backup/internal/hostinfo"
	"github.com/ashevtsov/bitrix-backup/internal/logging"
	"github.com/ashevtsov/bitrix-backup/internal/notify"
	"github.com/ashevtsov/bitrix-backup/internal/retention"
	"github.com/ashevtsov/bitrix-backup/internal/s3store"
)

// TimestampLayout names backup artifacts and snapshot folders.
const TimestampLayout = "20060102_150405"

// Runner executes backups against the current configuration. The
// configuration can be swapped at runtime via UpdateConfig.
type Runner struct {
	mu  sync.RWMutex
	cfg *config.Config
	log logging.Logger
	fs  fs.FS
}

func New(cfg *config.Config, log logging.Logger, filesystem fs.FS) *Runner {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Runner{cfg: cfg, log: log, fs: filesystem}
}

// UpdateConfig hot-reloads the configuration for subsequent runs.
func (r *Runner) UpdateConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

func (r *Runner) config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Run performs one complete backup and sends the outcome notification.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.config()
	start := time.Now()
	timestamp := start.Format(TimestampLayout)
	notifier := notify.New(cfg, r.log)

	r.log.Info("========== backup run started ==========")
	info, err := r.run(ctx, cfg, start, timestamp)
	if err != nil {
		r.log.Error("backup run failed: %v", err)
		r.log.Info("========== backup run finished with errors ==========")
		notifier.Failure(ctx, err)
		return err
	}

	r.log.Info("========== backup run finished successfully ==========")
	notifier.Success(ctx, *info)
	return nil
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, start time.Time, timestamp string) (*notify.SuccessInfo, error) {
	if err := r.fs.MkdirAll(cfg.BackupDir); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	if err := r.checkDiskSpace(cfg); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "bitrix_backup_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			r.log.Warn("cleanup temp dir: %v", err)
		}
	}()

	dumpPath, err := dump.Run(ctx, cfg.Database, tempDir)
	if err != nil {
		return nil, err
	}
	r.log.Info("database dump written: %s", filepath.Base(dumpPath))

	cat, err := r.archiveFiles(cfg, tempDir)
	if err != nil {
		return nil, err
	}
	r.archiveSystemConfigs(cfg, tempDir)

	manifest := catalog.BuildManifest(cat, start)
	if err := manifest.WriteJSON(filepath.Join(tempDir, "backup_manifest.json")); err != nil {
		return nil, err
	}
	if err := manifest.WriteHuman(filepath.Join(tempDir, "backup_files_list.txt")); err != nil {
		return nil, err
	}

	if err := writeInfoFile(ctx, cfg, tempDir, start); err != nil {
		r.log.Warn("info file: %v", err)
	}

	artifact, err := r.assembleArtifact(ctx, cfg, tempDir, timestamp)
	if err != nil {
		return nil, err
	}
	artifactInfo, err := os.Stat(artifact)
	if err != nil {
		return nil, fmt.Errorf("stat final artifact: %w", err)
	}
	r.log.Info("final backup created: %s (%s)", filepath.Base(artifact), catalog.HumanSize(artifactInfo.Size()))

	info := &notify.SuccessInfo{
		ArtifactPath: artifact,
		ArtifactSize: artifactInfo.Size(),
	}
	if err := r.manageStorage(ctx, cfg, artifact, info); err != nil {
		return nil, err
	}
	if err := r.mirrorWorkStorage(ctx, cfg, timestamp, info); err != nil {
		return nil, err
	}
	return info, nil
}

// checkDiskSpace aborts the run early when the backup volume is too
// full to hold another artifact. An unsupported platform only warns.
func (r *Runner) checkDiskSpace(cfg *config.Config) error {
	if cfg.MinDiskSpaceKB <= 0 {
		return nil
	}
	res, err := hostinfo.CheckDiskSpace(cfg.BackupDir, cfg.MinDiskSpaceKB)
	if err != nil {
		r.log.Warn("disk space check skipped: %v", err)
		return nil
	}
	if !res.OK {
		return fmt.Errorf("not enough disk space in %s: %s", cfg.BackupDir, res)
	}
	r.log.Info("disk space ok: %s", res)
	return nil
}

func (r *Runner) archiveFiles(cfg *config.Config, tempDir string) (*catalog.Catalog, error) {
	r.log.Info("archiving %s with %d exclusion patterns", cfg.BitrixRoot, len(cfg.ExcludePatterns))
	cls := catalog.NewClassifier(cfg.ExcludePatterns)
	cat, err := archive.WriteTree(filepath.Join(tempDir, "bitrix_files.tar.gz"), cfg.BitrixRoot, cls)
	if err != nil {
		return nil, fmt.Errorf("archive bitrix files: %w", err)
	}
	r.log.Info("files archived: %d included (%s), %d excluded (%s)",
		cat.Stats.IncludedFiles, catalog.HumanSize(cat.Stats.IncludedBytes),
		cat.Stats.ExcludedFiles, catalog.HumanSize(cat.Stats.ExcludedBytes))
	for _, we := range cat.Errors {
		r.log.Warn("unreadable during archive: %s: %s", we.Path, we.Err)
	}
	return cat, nil
}

// archiveSystemConfigs collects the host config files that exist.
// Missing ones are logged and skipped; a web server moving its config
// around must not fail the whole backup.
func (r *Runner) archiveSystemConfigs(cfg *config.Config, tempDir string) {
	var present []string
	for _, p := range cfg.SystemConfigs {
		if _, err := os.Stat(p); err != nil {
			r.log.Warn("system config missing, skipped: %s", p)
			continue
		}
		present = append(present, p)
	}
	if len(present) == 0 {
		r.log.Info("no system configs to archive")
		return
	}
	if err := archive.WritePaths(filepath.Join(tempDir, "system_configs.tar.gz"), present); err != nil {
		r.log.Warn("system configs archive: %v", err)
		return
	}
	r.log.Info("system configs archived: %d files", len(present))
}

// assembleArtifact bundles the staging directory into the final
// archive, still inside the staging dir, then copies it into the
// backup dir under a temporary name and renames it into place. A
// crashed run never leaves a plausible-looking artifact behind.
func (r *Runner) assembleArtifact(ctx context.Context, cfg *config.Config, tempDir, timestamp string) (string, error) {
	name := ArtifactName(timestamp)
	staged := filepath.Join(tempDir, name)
	tmpPath := filepath.Join(cfg.BackupDir, ".tmp-"+name)
	finalPath := filepath.Join(cfg.BackupDir, name)

	if err := archive.WriteDirContents(staged, tempDir); err != nil {
		return "", fmt.Errorf("assemble final archive: %w", err)
	}
	if err := r.fs.CopyFile(ctx, staged, tmpPath); err != nil {
		_ = r.fs.Remove(tmpPath)
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	if err := r.fs.Rename(ctx, tmpPath, finalPath); err != nil {
		_ = r.fs.Remove(tmpPath)
		return "", fmt.Errorf("finalize artifact: %w", err)
	}
	return finalPath, nil
}

func (r *Runner) manageStorage(ctx context.Context, cfg *config.Config, artifact string, info *notify.SuccessInfo) error {
	if cfg.StorageType == config.StorageLocal {
		if _, err := retention.New(cfg.BackupDir, cfg.MaxBackups, r.log).Rotate(); err != nil {
			return fmt.Errorf("rotate local backups: %w", err)
		}
		return nil
	}

	store, err := s3store.NewFromConfig(cfg.S3)
	if err != nil {
		return err
	}
	key, err := s3store.UploadArtifact(ctx, store, cfg.S3.BackupPath, artifact, cfg.BitrixRoot, r.log)
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	info.S3Bucket = store.Bucket()
	info.S3Key = key

	if _, err := s3store.RotateObjects(ctx, store, cfg.S3.BackupPath+"/", cfg.S3.MaxBackups, r.log); err != nil {
		return fmt.Errorf("rotate s3 backups: %w", err)
	}

	if cfg.S3.DeleteLocalAfterUpload {
		if err := r.fs.Remove(artifact); err != nil {
			r.log.Warn("delete local artifact after upload: %v", err)
		} else {
			r.log.Info("local backup removed after upload: %s", filepath.Base(artifact))
		}
	}
	return nil
}

// mirrorWorkStorage snapshots the Bitrix work file storage bucket into
// the backup bucket. Old snapshots rotate only after the new one
// verifies; an unverified snapshot stays in place for inspection.
func (r *Runner) mirrorWorkStorage(ctx context.Context, cfg *config.Config, timestamp string, info *notify.SuccessInfo) error {
	wc := cfg.S3WorkStorage
	if wc == nil || !wc.Enabled {
		r.log.Info("work storage backup disabled")
		return nil
	}
	if cfg.StorageType != config.StorageS3 {
		r.log.Info("work storage backup needs storageType s3, skipped")
		return nil
	}

	src, err := s3store.NewFromWorkConfig(wc)
	if err != nil {
		return err
	}
	dst, err := s3store.NewFromConfig(cfg.S3)
	if err != nil {
		return err
	}

	res, err := s3store.NewMirror(src, dst, wc.BackupFolder, r.log).Run(ctx, timestamp)
	if err != nil {
		return fmt.Errorf("mirror work storage: %w", err)
	}
	if !res.Verified {
		return errors.New("work storage snapshot did not verify")
	}
	info.WorkSnapshot = fmt.Sprintf("s3://%s/%s/%s/", dst.Bucket(), wc.BackupFolder, timestamp)

	if _, err := s3store.RotateFolders(ctx, dst, wc.BackupFolder, wc.MaxBackups, r.log); err != nil {
		return fmt.Errorf("rotate work storage snapshots: %w", err)
	}
	return nil
}
