package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-scheduler-service/internal/models"
)

type gormExecutionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository builds an ExecutionRepository backed by gorm.
func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &gormExecutionRepository{db: db}
}

func (r *gormExecutionRepository) Create(ctx context.Context, exec *models.TaskExecution) error {
	if err := r.db.WithContext(ctx).Create(exec).Error; err != nil {
		return fmt.Errorf("creating execution for task %d: %w", exec.TaskID, err)
	}
	return nil
}

func (r *gormExecutionRepository) GetByID(ctx context.Context, id uint) (*models.TaskExecution, error) {
	var exec models.TaskExecution
	if err := r.db.WithContext(ctx).First(&exec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("execution", id)
		}
		return nil, fmt.Errorf("loading execution %d: %w", id, err)
	}
	return &exec, nil
}

func (r *gormExecutionRepository) ListByTask(ctx context.Context, taskID uint, limit, offset int) ([]models.TaskExecution, error) {
	q := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var execs []models.TaskExecution
	if err := q.Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("listing executions for task %d: %w", taskID, err)
	}
	return execs, nil
}

func (r *gormExecutionRepository) LatestByTask(ctx context.Context, taskID uint) (*models.TaskExecution, error) {
	var exec models.TaskExecution
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id DESC").First(&exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading latest execution for task %d: %w", taskID, err)
	}
	return &exec, nil
}

func (r *gormExecutionRepository) LatestPerTask(ctx context.Context, taskIDs []uint) (map[uint]*models.TaskExecution, error) {
	result := make(map[uint]*models.TaskExecution, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}

	// One round trip: the newest row per task is the one with the highest id.
	sub := r.db.Model(&models.TaskExecution{}).
		Select("MAX(id)").
		Where("task_id IN ?", taskIDs).
		Group("task_id")

	var execs []models.TaskExecution
	if err := r.db.WithContext(ctx).Where("id IN (?)", sub).Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("loading latest executions: %w", err)
	}
	for i := range execs {
		result[execs[i].TaskID] = &execs[i]
	}
	return result, nil
}

func (r *gormExecutionRepository) Finalize(ctx context.Context, exec *models.TaskExecution) error {
	if !exec.Status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %s", exec.Status)
	}

	res := r.db.WithContext(ctx).Model(&models.TaskExecution{}).
		Where("id = ? AND status IN ?", exec.ID,
			[]models.ExecutionStatus{models.ExecutionPending, models.ExecutionRunning}).
		Updates(map[string]interface{}{
			"status":           exec.Status,
			"end_time":         exec.EndTime,
			"duration_seconds": exec.DurationSeconds,
			"result":           exec.Result,
			"error_message":    exec.ErrorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("finalizing execution %d: %w", exec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyFinal
	}
	return nil
}

func (r *gormExecutionRepository) SweepRunning(ctx context.Context, message string) (int64, error) {
	var stale []models.TaskExecution
	if err := r.db.WithContext(ctx).Where("status = ?", models.ExecutionRunning).Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("finding stale executions: %w", err)
	}

	now := time.Now()
	var swept int64
	for i := range stale {
		e := &stale[i]
		e.ErrorMessage = message
		e.Finish(models.ExecutionTerminated, now)
		if err := r.Finalize(ctx, e); err != nil {
			if errors.Is(err, ErrAlreadyFinal) {
				continue
			}
			return swept, err
		}
		swept++
	}
	return swept, nil
}

func (r *gormExecutionRepository) Stats(ctx context.Context, taskID *uint) (*ExecutionStats, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.TaskExecution{})
		if taskID != nil {
			q = q.Where("task_id = ?", *taskID)
		}
		return q
	}

	type statusCount struct {
		Status models.ExecutionStatus
		Count  int64
	}
	var counts []statusCount
	if err := scoped().Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("aggregating execution counts: %w", err)
	}

	stats := &ExecutionStats{}
	for _, c := range counts {
		stats.Total += c.Count
		switch {
		case c.Status.IsSuccess():
			stats.Success += c.Count
		case c.Status == models.ExecutionFailed:
			stats.Failed += c.Count
		case c.Status == models.ExecutionRunning:
			stats.Running += c.Count
		case c.Status == models.ExecutionTerminated:
			stats.Terminated += c.Count
		}
	}
	if done := stats.Success + stats.Failed + stats.Terminated; done > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(done)
	}

	var avg sql.NullFloat64
	if err := scoped().Where("end_time IS NOT NULL").
		Select("AVG(duration_seconds)").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("aggregating execution durations: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationSeconds = avg.Float64
	}
	return stats, nil
}
