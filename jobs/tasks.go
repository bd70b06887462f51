package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMedia holds image work so it cannot starve the maintenance tasks.
	QueueMedia = "media"

	// TaskAttachmentThumbnail renders the preview of an uploaded image.
	TaskAttachmentThumbnail = "attachment:thumbnail"
	// TaskCleanupDuplicates removes archived reports that share a store and day.
	TaskCleanupDuplicates = "dailysales:cleanup_duplicates"
	// TaskDashboardWarmup recomputes the per-store dashboard figures.
	TaskDashboardWarmup = "dashboard:warmup"
)

const (
	// CronCleanupDuplicates runs nightly after the finance team is done archiving.
	CronCleanupDuplicates = "0 3 * * *"
	// CronDashboardWarmup keeps the cached figures close to the cache TTL.
	CronDashboardWarmup = "*/30 * * * *"
)

// ThumbnailPayload identifies the attachment to preview.
type ThumbnailPayload struct {
	AttachmentID int64 `json:"attachment_id"`
}

// NewThumbnailTask constructs an attachment thumbnail task.
func NewThumbnailTask(attachmentID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ThumbnailPayload{AttachmentID: attachmentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttachmentThumbnail, data, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// NewCleanupDuplicatesTask constructs the nightly duplicate cleanup.
func NewCleanupDuplicatesTask() *asynq.Task {
	return asynq.NewTask(TaskCleanupDuplicates, nil, asynq.MaxRetry(1), asynq.Unique(time.Hour))
}

// NewDashboardWarmupTask constructs the dashboard warmup.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardWarmup, nil, asynq.MaxRetry(1), asynq.Unique(10*time.Minute))
}

// DefaultCron lists the periodic tasks the worker schedules.
func DefaultCron() []CronRegistration {
	return []CronRegistration{
		{Spec: CronCleanupDuplicates, Task: NewCleanupDuplicatesTask(), Options: []asynq.Option{asynq.Queue(QueueDefault)}},
		{Spec: CronDashboardWarmup, Task: NewDashboardWarmupTask(), Options: []asynq.Option{asynq.Queue(QueueDefault)}},
	}
}
