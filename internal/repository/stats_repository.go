package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-bot/internal/model"
)

// StatsRepository keeps per-owner completion counters.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Ensure creates the owner's stats row if it does not exist yet.
func (r *StatsRepository) Ensure(ctx context.Context, ownerID int64) error {
	stats := model.UserStats{OwnerID: ownerID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error; err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	return nil
}

// CompletedCount returns the owner's counter, zero when no row exists.
func (r *StatsRepository) CompletedCount(ctx context.Context, ownerID int64) (int, error) {
	var stats model.UserStats
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stats: %w", err)
	}
	return stats.CompletedCount, nil
}

func incrementCompleted(tx *gorm.DB, ownerID int64) (int, error) {
	stats := model.UserStats{OwnerID: ownerID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error; err != nil {
		return 0, fmt.Errorf("ensure stats: %w", err)
	}
	if err := tx.Model(&model.UserStats{}).Where("user_id = ?", ownerID).
		Update("completed_tasks_count", gorm.Expr("completed_tasks_count + 1")).Error; err != nil {
		return 0, fmt.Errorf("increment stats: %w", err)
	}
	if err := tx.Where("user_id = ?", ownerID).First(&stats).Error; err != nil {
		return 0, fmt.Errorf("read stats: %w", err)
	}
	return stats.CompletedCount, nil
}
