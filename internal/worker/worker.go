// Package worker runs backup jobs taken from the mailbox, one at a
// time. Overlapping triggers collapse into a single pending job.
package worker

import (
	"context"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/logging"
	"github.com/ashevtsov/bitrix-backup/internal/mailbox"
	"github.com/ashevtsov/bitrix-backup/internal/runner"
)

// Job is one backup trigger.
type Job struct {
	Trigger   string // "cron", "signal", "manual"
	Requested time.Time
}

type Worker struct {
	runner *runner.Runner
	mb     *mailbox.Mailbox[Job]
	log    logging.Logger
}

func New(r *runner.Runner, mb *mailbox.Mailbox[Job], log logging.Logger) *Worker {
	return &Worker{runner: r, mb: mb, log: log}
}

// Start blocks, taking jobs until the context is cancelled. A failed
// run is logged and the loop keeps going; scheduled backups must
// survive one bad night.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("worker started")
	for {
		job, ok := w.mb.Take(ctx)
		if !ok {
			w.log.Info("worker stopped")
			return
		}
		w.log.Info("backup job accepted (trigger: %s, requested: %s)",
			job.Trigger, job.Requested.Format("2006-01-02 15:04:05"))
		if err := w.runner.Run(ctx); err != nil {
			w.log.Error("backup job failed: %v", err)
		}
	}
}
