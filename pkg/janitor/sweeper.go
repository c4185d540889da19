package janitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

const (
	DefaultSchedule    = "@every 1h"
	DefaultGracePeriod = 15 * time.Minute
)

// Config controls the orphan sweeper
type Config struct {
	Schedule    string
	GracePeriod time.Duration
	// Prefix limits the sweep to blobs under this path
	Prefix string
}

// Options wires the optional collaborators of the sweeper
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Audit   audit.Logger
}

// Sweeper deletes blobs that no file row references. Blobs younger than
// the grace period are left alone so in-flight uploads are not raced.
type Sweeper struct {
	blobs   storage.BlobStore
	files   storage.FileStore
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
	audit   audit.Logger
	now     func() time.Time

	running sync.Mutex
	cron    *cron.Cron
}

// ValidateSchedule checks a cron spec, including descriptors like "@every 1h"
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	return nil
}

// NewSweeper creates a sweeper
func NewSweeper(blobs storage.BlobStore, files storage.FileStore, cfg Config, opts Options) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOpLogger{}
	}

	return &Sweeper{
		blobs:   blobs,
		files:   files,
		cfg:     cfg,
		logger:  opts.Logger.WithField("component", "janitor"),
		metrics: opts.Metrics,
		audit:   opts.Audit,
		now:     time.Now,
	}
}

// SweepOnce runs a single pass and returns the number of blobs removed.
// Per-blob failures are collected and the pass continues.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.running.TryLock() {
		s.logger.Debug("sweep already running, skipping")
		return 0, nil
	}
	defer s.running.Unlock()

	blobs, err := s.blobs.ListBlobs(ctx, s.cfg.Prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}

	cutoff := s.now().Add(-s.cfg.GracePeriod)
	var (
		removed int
		errs    []error
	)

	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if blob.ModifiedAt.After(cutoff) {
			continue
		}

		referenced, err := s.files.FileExistsByPath(ctx, blob.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to check %s: %w", blob.Path, err))
			continue
		}
		if referenced {
			continue
		}

		if err := s.blobs.DeleteBlob(ctx, blob.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", blob.Path, err))
			continue
		}

		removed++
		s.logger.WithField("file_path", blob.Path).WithField("size", blob.Size).Info("removed orphan blob")
		audit.Emit(ctx, s.audit, &audit.AuditEvent{
			EventType:    audit.EventTypeMaintenanceOrphanSweep,
			Status:       audit.EventStatusSuccess,
			ResourceType: audit.ResourceTypeBlob,
			ResourceID:   blob.Path,
			Metadata:     map[string]interface{}{"size": blob.Size},
		})
	}

	s.metrics.RecordOrphansSwept(removed)
	return removed, errors.Join(errs...)
}

// Start schedules SweepOnce on the configured cron spec
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(s.cfg.Schedule, func() {
		defer observability.RecoverPanic(s.logger, "orphan sweep")

		removed, err := s.SweepOnce(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("removed", removed).Error("orphan sweep finished with errors")
			return
		}
		s.logger.WithField("removed", removed).Debug("orphan sweep finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule orphan sweep: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.WithField("schedule", s.cfg.Schedule).
		WithField("grace_period", s.cfg.GracePeriod.String()).
		Info("orphan sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
