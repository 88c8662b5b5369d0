package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"todo-bot/internal/model"
)

// ReminderRepository reads and updates reminder throttle state.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Candidates returns throttle records of owners that have at least one
// active task with a reminder enabled.
func (r *ReminderRepository) Candidates(ctx context.Context) ([]model.UserReminderThrottle, error) {
	var throttles []model.UserReminderThrottle
	err := r.db.WithContext(ctx).
		Where("user_id IN (?)", r.db.Model(&model.Task{}).
			Select("DISTINCT user_id").
			Where("status = ? AND remind_me = ?", model.StatusActive, true)).
		Order("user_id").
		Find(&throttles).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return throttles, nil
}

// Throttle returns the owner's throttle record, or nil when there is none.
func (r *ReminderRepository) Throttle(ctx context.Context, ownerID int64) (*model.UserReminderThrottle, error) {
	var throttles []model.UserReminderThrottle
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Limit(1).Find(&throttles).Error; err != nil {
		return nil, fmt.Errorf("get throttle: %w", err)
	}
	if len(throttles) == 0 {
		return nil, nil
	}
	return &throttles[0], nil
}

// CountDue counts the owner's active reminder tasks whose deadline is date.
func (r *ReminderRepository) CountDue(ctx context.Context, ownerID int64, date string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND status = ? AND remind_me = ? AND deadline = ?", ownerID, model.StatusActive, true, date).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count due tasks: %w", err)
	}
	return count, nil
}

// MarkReminded records a delivered reminder. A throttle row removed in the
// meantime is left removed.
func (r *ReminderRepository) MarkReminded(ctx context.Context, ownerID int64, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.UserReminderThrottle{}).
		Where("user_id = ?", ownerID).
		Update("last_reminded_at", at).Error
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

// DisableAll turns off every reminder of the owner and drops the throttle record.
func (r *ReminderRepository) DisableAll(ctx context.Context, ownerID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).Where("user_id = ?", ownerID).
			Update("remind_me", false).Error; err != nil {
			return fmt.Errorf("clear reminders: %w", err)
		}
		if err := tx.Where("user_id = ?", ownerID).Delete(&model.UserReminderThrottle{}).Error; err != nil {
			return fmt.Errorf("delete throttle: %w", err)
		}
		return nil
	})
}
