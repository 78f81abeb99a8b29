// Package worker drains queued refresh tasks and runs periodic engagement
// sweeps in the background of the API process.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/logger"
	"vidvest/internal/metrics"
	"vidvest/internal/models"
	"vidvest/internal/services"
)

// Config tunes the task worker.
type Config struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxAttempts      int
	MaxAge           time.Duration
	BackfillBaseline bool
	Lease            time.Duration
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3 * time.Hour
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 10 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	return c
}

// TaskWorker processes RefreshTask rows written by the ledger. Delivery is
// at least once: a task whose worker died is requeued once its lease expires.
type TaskWorker struct {
	db        *gorm.DB
	snapshots services.SnapshotServicer
	cfg       Config
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	wake      chan struct{}
	now       func() time.Time
}

// NewTaskWorker creates a worker that refreshes videos through snapshots.
func NewTaskWorker(db *gorm.DB, snapshots services.SnapshotServicer, cfg Config, m *metrics.Metrics) *TaskWorker {
	return &TaskWorker{
		db:        db,
		snapshots: snapshots,
		cfg:       cfg.withDefaults(),
		metrics:   m,
		log:       logger.Named("worker.refresh_tasks"),
		wake:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Notify wakes the worker without waiting for the next poll. It never blocks.
func (w *TaskWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// RunForever processes batches until ctx is cancelled.
func (w *TaskWorker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Infow("refresh task worker started", "poll_interval", w.cfg.PollInterval, "batch_size", w.cfg.BatchSize)
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warnw("refresh task run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.log.Info("refresh task worker stopped")
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// RunOnce requeues expired leases, then claims and processes one batch of
// due tasks. It returns the number of tasks processed.
func (w *TaskWorker) RunOnce(ctx context.Context) (int, error) {
	if err := w.requeueExpired(ctx); err != nil {
		return 0, err
	}

	var tasks []models.RefreshTask
	err := w.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", models.RefreshTaskPending, w.now()).
		Order("available_at ASC").
		Limit(w.cfg.BatchSize).
		Find(&tasks).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range tasks {
		if ctx.Err() != nil {
			break
		}
		claimed, err := w.claim(ctx, &tasks[i])
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}
		w.process(ctx, &tasks[i])
		processed++
	}
	return processed, nil
}

func (w *TaskWorker) requeueExpired(ctx context.Context) error {
	result := w.db.WithContext(ctx).Model(&models.RefreshTask{}).
		Where("status = ? AND claimed_at < ?", models.RefreshTaskRunning, w.now().Add(-w.cfg.Lease)).
		Updates(map[string]interface{}{
			"status":     models.RefreshTaskPending,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		w.log.Warnw("requeued refresh tasks with expired lease", "count", result.RowsAffected)
	}
	return nil
}

// claim moves a task from pending to running. Another worker that claimed
// it first leaves zero rows matched.
func (w *TaskWorker) claim(ctx context.Context, task *models.RefreshTask) (bool, error) {
	now := w.now()
	result := w.db.WithContext(ctx).Model(&models.RefreshTask{}).
		Where("id = ? AND status = ?", task.ID, models.RefreshTaskPending).
		Updates(map[string]interface{}{
			"status":     models.RefreshTaskRunning,
			"claimed_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	task.Status = models.RefreshTaskRunning
	task.ClaimedAt = &now
	task.Attempts++
	return true, nil
}

func (w *TaskWorker) process(ctx context.Context, task *models.RefreshTask) {
	snap, err := w.snapshots.GetFreshSnapshot(ctx, task.VideoID, w.cfg.MaxAge)
	if err == nil && w.cfg.BackfillBaseline && task.InvestmentID != nil {
		err = services.OverwriteBaseline(ctx, w.db, *task.InvestmentID, snap)
	}

	if err == nil {
		w.finish(ctx, task, models.RefreshTaskDone, "", w.now())
		w.metrics.RefreshTask("done")
		return
	}

	if task.Attempts >= w.cfg.MaxAttempts || errors.Is(err, apperrors.ErrVideoNotFound) {
		w.log.Errorw("refresh task failed permanently",
			"task_id", task.ID,
			"video_id", task.VideoID,
			"attempts", task.Attempts,
			"error", err,
		)
		w.finish(ctx, task, models.RefreshTaskFailed, err.Error(), w.now())
		w.metrics.RefreshTask("failed")
		return
	}

	retryAt := w.now().Add(w.backoff(task.Attempts))
	w.log.Warnw("refresh task will be retried",
		"task_id", task.ID,
		"video_id", task.VideoID,
		"attempts", task.Attempts,
		"retry_at", retryAt,
		"error", err,
	)
	w.finish(ctx, task, models.RefreshTaskPending, err.Error(), retryAt)
	w.metrics.RefreshTask("retry")
}

// finish records the outcome of a claimed task. availableAt only matters for
// pending tasks.
func (w *TaskWorker) finish(ctx context.Context, task *models.RefreshTask, status models.RefreshTaskStatus, lastError string, availableAt time.Time) {
	// Outcome writes must survive shutdown or the claim waits out its lease.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := w.db.WithContext(writeCtx).Model(&models.RefreshTask{}).
		Where("id = ? AND status = ?", task.ID, models.RefreshTaskRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"last_error":   lastError,
			"available_at": availableAt,
			"claimed_at":   nil,
		}).Error
	if err != nil {
		w.log.Errorw("failed to record refresh task outcome", "task_id", task.ID, "status", status, "error", err)
		return
	}
	task.Status = status
	task.LastError = lastError
	task.AvailableAt = availableAt
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (w *TaskWorker) backoff(attempts int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}
