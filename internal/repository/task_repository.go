package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-bot/internal/model"
)

// ErrNotActive is returned when a conditional write matched no active task.
var ErrNotActive = errors.New("task not found or not active")

const createAttempts = 5

// TaskQuery selects an owner's tasks. Empty bounds mean no deadline constraint.
type TaskQuery struct {
	OwnerID      int64
	Status       model.Status
	DeadlineFrom string
	DeadlineTo   string
	RemindMe     *bool
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create stores a new active task under the owner's next task number.
// The number is computed inside the insert transaction; a duplicate key from a
// concurrent insert is retried with a fresh number.
func (r *TaskRepository) Create(ctx context.Context, ownerID int64, description string, deadline *string) (*model.Task, error) {
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		task := model.Task{
			OwnerID:     ownerID,
			Description: description,
			Deadline:    deadline,
			Status:      model.StatusActive,
		}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := nextTaskNumber(tx, ownerID)
			if err != nil {
				return err
			}
			task.TaskNumber = number
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
			return tx.Model(&model.UserStats{}).Where("user_id = ?", ownerID).
				Update("last_task_number", number).Error
		})
		if err == nil {
			return &task, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create task: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("create task: number assignment kept colliding: %w", lastErr)
}

// List returns tasks matching q ordered by task number.
func (r *TaskRepository) List(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	db := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", q.OwnerID, q.Status)
	if q.RemindMe != nil {
		db = db.Where("remind_me = ?", *q.RemindMe)
	}
	if q.DeadlineFrom != "" {
		db = db.Where("deadline >= ?", q.DeadlineFrom)
	}
	if q.DeadlineTo != "" {
		db = db.Where("deadline <= ?", q.DeadlineTo)
	}

	var tasks []model.Task
	if err := db.Order("task_number ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindActiveByNumber returns the owner's active task with the given number.
func (r *TaskRepository) FindActiveByNumber(ctx context.Context, ownerID int64, number int) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_number = ? AND status = ?", ownerID, number, model.StatusActive).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotActive
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) UpdateDescription(ctx context.Context, ownerID int64, number int, description string) error {
	return r.updateActive(ctx, ownerID, number, map[string]interface{}{"description": description})
}

func (r *TaskRepository) UpdateDeadline(ctx context.Context, ownerID int64, number int, deadline *string) error {
	return r.updateActive(ctx, ownerID, number, map[string]interface{}{"deadline": deadline})
}

// SetReminder flips remind_me on an active task addressed by its internal id.
// Enabling also makes sure the owner has a throttle record.
func (r *TaskRepository) SetReminder(ctx context.Context, ownerID int64, taskID uint, enabled bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND user_id = ? AND status = ?", taskID, ownerID, model.StatusActive).
			Update("remind_me", enabled)
		if res.Error != nil {
			return fmt.Errorf("set reminder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotActive
		}
		if !enabled {
			return nil
		}
		throttle := model.UserReminderThrottle{OwnerID: ownerID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&throttle).Error; err != nil {
			return fmt.Errorf("create throttle: %w", err)
		}
		return nil
	})
}

// Complete moves an active task to completed, clears its reminder and bumps
// the owner's completed counter. It returns the task and the new count.
func (r *TaskRepository) Complete(ctx context.Context, ownerID int64, number int, at time.Time) (*model.Task, int, error) {
	var (
		task  model.Task
		count int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("user_id = ? AND task_number = ? AND status = ?", ownerID, number, model.StatusActive).
			Updates(map[string]interface{}{
				"status":       model.StatusCompleted,
				"remind_me":    false,
				"completed_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("complete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotActive
		}
		if err := tx.Where("user_id = ? AND task_number = ?", ownerID, number).First(&task).Error; err != nil {
			return fmt.Errorf("reload task: %w", err)
		}

		var err error
		count, err = incrementCompleted(tx, ownerID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &task, count, nil
}

// Delete hard-deletes an active task and returns what was removed.
func (r *TaskRepository) Delete(ctx context.Context, ownerID int64, number int) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND task_number = ? AND status = ?", ownerID, number, model.StatusActive).
			First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotActive
		}
		if err != nil {
			return fmt.Errorf("find task: %w", err)
		}

		res := tx.Where("id = ? AND status = ?", task.ID, model.StatusActive).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// nextTaskNumber is one past both the highest stored number and the highest
// number ever issued to the owner.
func nextTaskNumber(tx *gorm.DB, ownerID int64) (int, error) {
	stats := model.UserStats{OwnerID: ownerID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error; err != nil {
		return 0, fmt.Errorf("ensure stats: %w", err)
	}
	if err := tx.Where("user_id = ?", ownerID).First(&stats).Error; err != nil {
		return 0, fmt.Errorf("read stats: %w", err)
	}

	var maxNumber int
	if err := tx.Model(&model.Task{}).Where("user_id = ?", ownerID).
		Select("COALESCE(MAX(task_number), 0)").Scan(&maxNumber).Error; err != nil {
		return 0, fmt.Errorf("max task number: %w", err)
	}
	if stats.LastTaskNumber > maxNumber {
		maxNumber = stats.LastTaskNumber
	}
	return maxNumber + 1, nil
}

func (r *TaskRepository) updateActive(ctx context.Context, ownerID int64, number int, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND task_number = ? AND status = ?", ownerID, number, model.StatusActive).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotActive
	}
	return nil
}
