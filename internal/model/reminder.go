package model

import "time"

// UserReminderThrottle caps how often an owner receives reminder messages.
// A nil LastRemindedAt means the owner was never reminded; a zero
// IntervalMinutes means the configured default interval applies.
type UserReminderThrottle struct {
	OwnerID         int64 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	LastRemindedAt  *time.Time
	IntervalMinutes int `gorm:"not null;default:0"`
}

func (UserReminderThrottle) TableName() string { return "user_reminder_throttle" }

// Interval returns the per-owner throttle, falling back to fallback when unset.
func (t UserReminderThrottle) Interval(fallback time.Duration) time.Duration {
	if t.IntervalMinutes <= 0 {
		return fallback
	}
	return time.Duration(t.IntervalMinutes) * time.Minute
}
