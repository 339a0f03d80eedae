package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/robfig/cron/v3"

	"github.com/ashevtsov/bitrix-backup/internal/analyzer"
	"github.com/ashevtsov/bitrix-backup/internal/config"
	"github.com/ashevtsov/bitrix-backup/internal/logging"
	"github.com/ashevtsov/bitrix-backup/internal/mailbox"
	"github.com/ashevtsov/bitrix-backup/internal/runner"
	"github.com/ashevtsov/bitrix-backup/internal/s3store"
	"github.com/ashevtsov/bitrix-backup/internal/worker"
)

var version = "2.0"

var cli struct {
	Config  string           `short:"c" default:"/etc/bitrix-backup/config.yaml" help:"Path to the configuration file."`
	Debug   bool             `help:"Force debug logging."`
	Version kong.VersionFlag `short:"v" help:"Display version."`

	Run struct {
	} `cmd:"" default:"1" help:"Run one backup now and exit."`

	Serve struct {
	} `cmd:"" help:"Run backups on the configured cron schedule."`

	Upload struct {
		File string `arg:"" type:"existingfile" help:"Archive to upload to the S3 backup storage."`
	} `cmd:"" help:"Upload a single file to the S3 backup storage."`

	Analyze struct {
		Output string `short:"o" help:"Report path (defaults into the log directory)."`
	} `cmd:"" help:"Analyze backup sizes without creating a backup."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("bitrix-backup"),
		kong.Description("Bitrix24 backup system."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cli.Debug {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Dir:         cfg.Logging.Dir,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		BackupCount: cfg.Logging.BackupCount,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	switch kctx.Command() {
	case "run":
		if err := runner.New(cfg, log, nil).Run(ctx); err != nil {
			os.Exit(1)
		}
	case "serve":
		if err := serve(ctx, cfg, log); err != nil {
			log.Error("serve: %v", err)
			os.Exit(1)
		}
	case "upload <file>":
		if err := upload(ctx, cfg, log); err != nil {
			log.Error("upload: %v", err)
			os.Exit(1)
		}
	case "analyze":
		if err := analyze(cfg, log); err != nil {
			log.Error("analyze: %v", err)
			os.Exit(1)
		}
	}
}

// serve schedules backups with cron and processes them through a
// single worker. SIGHUP reloads the configuration in place.
func serve(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	if cfg.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required in serve mode")
	}

	mb := mailbox.New[worker.Job]()
	run := runner.New(cfg, log, nil)
	w := worker.New(run, mb, log)

	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule.Cron, func() {
		mb.Put(worker.Job{Trigger: "cron", Requested: time.Now()})
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Schedule.Cron, err)
	}
	c.Start()
	defer c.Stop()
	log.Info("scheduled backups: %q", cfg.Schedule.Cron)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGHUP)
		for {
			select {
			case <-sigCh:
				newCfg, err := config.Load(cli.Config)
				if err != nil {
					log.Error("config reload failed: %v", err)
					continue
				}
				run.UpdateConfig(newCfg)
				log.Info("config reloaded")
			case <-ctx.Done():
				return
			}
		}
	}()

	w.Start(ctx)
	return nil
}

func upload(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	store, err := s3store.NewFromConfig(cfg.S3)
	if err != nil {
		return err
	}
	_, err = s3store.UploadArtifact(ctx, store, cfg.S3.BackupPath, cli.Upload.File, cfg.BitrixRoot, log)
	return err
}

func analyze(cfg *config.Config, log logging.Logger) error {
	report, err := analyzer.Analyze(cfg.BitrixRoot, cfg.ExcludePatterns)
	if err != nil {
		return err
	}

	out := cli.Analyze.Output
	if out == "" {
		dir := cfg.Logging.Dir
		if dir == "" {
			dir = "."
		}
		out = filepath.Join(dir, fmt.Sprintf("backup_size_analysis_%s.json", time.Now().Format(runner.TimestampLayout)))
	}
	if err := report.WriteJSON(out); err != nil {
		return err
	}

	s := report.Summary
	log.Info("total files: %d (%s)", s.TotalFiles, s.TotalSizeHuman)
	log.Info("would be backed up: %s (%d files)", s.IncludedSizeHuman, s.IncludedFiles)
	log.Info("would be excluded: %s (%d files, %.2f%%)", s.ExcludedSizeHuman, s.ExcludedFiles, s.ExclusionRatioPercent)
	log.Info("report saved: %s", out)
	return nil
}
