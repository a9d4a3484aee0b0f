package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-scheduler-service/internal/models"
)

type gormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository builds a TaskRepository backed by gorm.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(ctx context.Context, task *models.ScheduledTask) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("creating task %q: %w", task.Name, err)
	}
	return nil
}

func (r *gormTaskRepository) Update(ctx context.Context, task *models.ScheduledTask) error {
	// Save writes all fields, including zero values like Enabled=false and
	// an emptied cron expression.
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("updating task %d: %w", task.ID, err)
	}
	return nil
}

func (r *gormTaskRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ScheduledTask{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("task", id)
	}
	return nil
}

func (r *gormTaskRepository) GetByID(ctx context.Context, id uint) (*models.ScheduledTask, error) {
	var task models.ScheduledTask
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("task", id)
		}
		return nil, fmt.Errorf("loading task %d: %w", id, err)
	}
	return &task, nil
}

func (r *gormTaskRepository) GetByName(ctx context.Context, name string) (*models.ScheduledTask, error) {
	var task models.ScheduledTask
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("task", name)
		}
		return nil, fmt.Errorf("loading task %q: %w", name, err)
	}
	return &task, nil
}

func (r *gormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.ScheduledTask, error) {
	q := r.db.WithContext(ctx).Model(&models.ScheduledTask{})
	if filter.TaskType != nil {
		q = q.Where("task_type = ?", *filter.TaskType)
	}
	if filter.Enabled != nil {
		q = q.Where("enabled = ?", *filter.Enabled)
	}

	var tasks []models.ScheduledTask
	if err := q.Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (r *gormTaskRepository) Transaction(ctx context.Context, fn func(TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTaskRepository{db: tx})
	})
}
