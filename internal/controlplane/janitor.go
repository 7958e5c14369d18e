package controlplane

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/robopeer/internal/archive"
	"github.com/autopeer-io/robopeer/internal/control"
)

// HistoryDrainer removes terminal commands older than a retention period.
type HistoryDrainer interface {
	DrainHistory(olderThan time.Duration) []control.Snapshot
}

// Janitor handles the periodic eviction of finished commands from the
// service history, handing them to an Archiver.
type Janitor struct {
	Service   HistoryDrainer
	Archiver  archive.Archiver
	Log       logr.Logger
	Retention time.Duration // e.g., 24 hours
	Interval  time.Duration // e.g., 1 hour, zero disables the janitor
	Clock     clock.WithTicker
}

// Start begins the cleanup loop.
// It blocks until the context is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if j.Interval <= 0 {
		j.Log.Info("History janitor disabled")
		<-ctx.Done()
		return nil
	}

	c := j.Clock
	if c == nil {
		c = clock.RealClock{}
	}

	j.Log.Info("Starting history janitor",
		"retention", j.Retention,
		"interval", j.Interval)

	ticker := c.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			j.cleanup(ctx)
		case <-ctx.Done():
			j.Log.Info("Stopping history janitor")
			return nil
		}
	}
}

func (j *Janitor) cleanup(ctx context.Context) {
	j.Log.V(1).Info("Running scheduled history cleanup")

	drained := j.Service.DrainHistory(j.Retention)
	if len(drained) == 0 {
		return
	}

	if j.Archiver != nil {
		if err := j.Archiver.Archive(ctx, drained); err != nil {
			// The entries are already gone from the service.
			j.Log.Error(err, "Failed to archive pruned commands", "count", len(drained))
			return
		}
	}
	j.Log.Info("Completed history cleanup", "pruned_count", len(drained))
}
