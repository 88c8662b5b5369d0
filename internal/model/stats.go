package model

// UserStats counts completed tasks per owner for milestone messages and
// remembers the highest task number ever issued, so numbers freed by a
// deletion are not handed out again.
type UserStats struct {
	OwnerID        int64 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	CompletedCount int   `gorm:"column:completed_tasks_count;not null;default:0"`
	LastTaskNumber int   `gorm:"not null;default:0"`
}

func (UserStats) TableName() string { return "user_stats" }
