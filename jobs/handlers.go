package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mxstorebi/mxstorebi/internal/jobs"
	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// ThumbnailGenerator renders and stores one attachment preview.
type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, attachmentID int64) error
}

// DuplicateCleaner removes archived duplicates and reports how many went.
type DuplicateCleaner interface {
	CleanupArchivedDuplicates(ctx context.Context) (int, error)
}

// DashboardWarmer refreshes cached dashboard figures.
type DashboardWarmer interface {
	Warmup(ctx context.Context) (int, error)
}

// KeyPurger drops form submission keys older than retention.
type KeyPurger interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Jobs bundles the task handlers run by the worker.
type Jobs struct {
	thumbs  ThumbnailGenerator
	cleaner DuplicateCleaner
	warmer  DashboardWarmer
	keys    KeyPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// WithKeyPurger makes the nightly cleanup also expire idempotency keys.
func (j *Jobs) WithKeyPurger(p KeyPurger) *Jobs {
	j.keys = p
	return j
}

// NewJobs wires the task handlers.
func NewJobs(thumbs ThumbnailGenerator, cleaner DuplicateCleaner, warmer DashboardWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{thumbs: thumbs, cleaner: cleaner, warmer: warmer, logger: logger, metrics: metrics}
}

// Handlers returns the asynq handlers keyed by task type.
func (j *Jobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAttachmentThumbnail, Handler: j.HandleThumbnail},
		{Type: TaskCleanupDuplicates, Handler: j.HandleCleanupDuplicates},
		{Type: TaskDashboardWarmup, Handler: j.HandleDashboardWarmup},
	}
}

// HandleThumbnail processes TaskAttachmentThumbnail.
func (j *Jobs) HandleThumbnail(ctx context.Context, t *asynq.Task) error {
	var payload ThumbnailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.AttachmentID <= 0 {
		return fmt.Errorf("thumbnail payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskAttachmentThumbnail)
	err := j.thumbs.GenerateThumbnail(ctx, payload.AttachmentID)
	if errors.Is(err, shared.ErrNotFound) {
		// deleted before the worker got to it
		j.logger.Info("thumbnail skipped", slog.Int64("attachment_id", payload.AttachmentID))
		return tracker.End(nil)
	}
	if err != nil {
		j.logger.Error("generate thumbnail", slog.Int64("attachment_id", payload.AttachmentID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddItems(TaskAttachmentThumbnail, 1)
	return tracker.End(nil)
}

// HandleCleanupDuplicates processes TaskCleanupDuplicates.
func (j *Jobs) HandleCleanupDuplicates(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(TaskCleanupDuplicates)
	start := time.Now()
	removed, err := j.cleaner.CleanupArchivedDuplicates(ctx)
	if err != nil {
		j.logger.Error("cleanup archived duplicates", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddItems(TaskCleanupDuplicates, removed)
	j.logger.Info("cleanup archived duplicates", slog.Int("removed", removed), slog.Duration("duration", time.Since(start)))
	if j.keys != nil {
		purged, err := j.keys.Cleanup(ctx, shared.IdempotencyRetention)
		if err != nil {
			j.logger.Warn("purge idempotency keys", slog.Any("error", err))
		} else if purged > 0 {
			j.logger.Info("idempotency keys purged", slog.Int64("purged", purged))
		}
	}
	return tracker.End(nil)
}

// HandleDashboardWarmup processes TaskDashboardWarmup.
func (j *Jobs) HandleDashboardWarmup(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(TaskDashboardWarmup)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	start := time.Now()
	stores, err := j.warmer.Warmup(ctx)
	if err != nil {
		j.logger.Error("dashboard warmup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddItems(TaskDashboardWarmup, stores)
	j.logger.Info("dashboard warmup", slog.Int("stores", stores), slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}
