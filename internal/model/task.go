package model

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// DateLayout is the storage format of task deadlines.
const DateLayout = "2006-01-02"

// Task represents a single item in the owner's list.
// TaskNumber is what the owner sees; ID never leaves the store and handlers.
type Task struct {
	ID          uint    `gorm:"primaryKey"`
	OwnerID     int64   `gorm:"column:user_id;not null;index"`
	TaskNumber  int     `gorm:"column:task_number"`
	Description string  `gorm:"not null"`
	Deadline    *string `gorm:"type:text"`
	Status      Status  `gorm:"type:text;default:active"`
	RemindMe    bool    `gorm:"column:remind_me;default:false"`
	CompletedAt *time.Time
}

func (Task) TableName() string { return "tasks" }

// IsActive reports whether the task can still be edited, completed or deleted.
func (t Task) IsActive() bool {
	return t.Status == StatusActive
}

// DeadlineDate parses the stored deadline. ok is false for absent or malformed values.
func (t Task) DeadlineDate() (date time.Time, ok bool) {
	if t.Deadline == nil || *t.Deadline == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(DateLayout, *t.Deadline)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// FormatDate renders a date in the storage layout.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
