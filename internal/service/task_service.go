package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-bot/internal/model"
	"todo-bot/internal/repository"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// CompletionResult describes a successful completion.
type CompletionResult struct {
	Task           model.Task
	CompletedCount int
	Milestone      string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	reminderRepo *repository.ReminderRepository
	statsRepo    *repository.StatsRepository
	log          *zap.Logger
	now          Clock
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	reminderRepo *repository.ReminderRepository,
	statsRepo *repository.StatsRepository,
	log *zap.Logger,
	now Clock,
) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{taskRepo: taskRepo, reminderRepo: reminderRepo, statsRepo: statsRepo, log: log, now: now}
}

// RegisterUser records a user on /start and returns how many tasks they
// have completed so far.
func (s *TaskService) RegisterUser(ctx context.Context, ownerID int64) (int, error) {
	if err := s.statsRepo.Ensure(ctx, ownerID); err != nil {
		return 0, err
	}
	return s.statsRepo.CompletedCount(ctx, ownerID)
}

// Now exposes the service clock so callers render dates consistently.
func (s *TaskService) Now() time.Time {
	return s.now()
}

// CreateTask stores a new active task. deadline may be nil.
func (s *TaskService) CreateTask(ctx context.Context, ownerID int64, description string, deadline *time.Time) (*model.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	task, err := s.taskRepo.Create(ctx, ownerID, description, dateValue(deadline))
	if err != nil {
		return nil, err
	}
	s.log.Info("task created",
		zap.Int64("user_id", ownerID),
		zap.Int("task_number", task.TaskNumber),
		zap.Uint("task_id", task.ID))
	return task, nil
}

// ListTasks returns the owner's tasks in the given status, narrowed by the
// time filter and, when remindMe is set, by the reminder flag.
func (s *TaskService) ListTasks(ctx context.Context, ownerID int64, filter TimeFilter, status model.Status, remindMe *bool) ([]model.Task, error) {
	q := repository.TaskQuery{OwnerID: ownerID, Status: status, RemindMe: remindMe}
	if from, to, ok := filter.Window(s.now()); ok {
		q.DeadlineFrom, q.DeadlineTo = from, to
	}
	return s.taskRepo.List(ctx, q)
}

// GetActive returns the owner's active task by its number.
func (s *TaskService) GetActive(ctx context.Context, ownerID int64, number int) (*model.Task, error) {
	task, err := s.taskRepo.FindActiveByNumber(ctx, ownerID, number)
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

func (s *TaskService) UpdateDescription(ctx context.Context, ownerID int64, number int, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrEmptyDescription
	}
	return translate(s.taskRepo.UpdateDescription(ctx, ownerID, number, description))
}

func (s *TaskService) UpdateDeadline(ctx context.Context, ownerID int64, number int, deadline *time.Time) error {
	return translate(s.taskRepo.UpdateDeadline(ctx, ownerID, number, dateValue(deadline)))
}

// CompleteTask marks an active task completed and reports the milestone, if any.
func (s *TaskService) CompleteTask(ctx context.Context, ownerID int64, number int) (*CompletionResult, error) {
	task, count, err := s.taskRepo.Complete(ctx, ownerID, number, s.now())
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("task completed",
		zap.Int64("user_id", ownerID),
		zap.Int("task_number", number),
		zap.Int("completed_count", count))
	return &CompletionResult{Task: *task, CompletedCount: count, Milestone: Milestone(count)}, nil
}

// DeleteTask removes an active task for good.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID int64, number int) (*model.Task, error) {
	task, err := s.taskRepo.Delete(ctx, ownerID, number)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("task deleted", zap.Int64("user_id", ownerID), zap.Int("task_number", number))
	return task, nil
}

func (s *TaskService) EnableReminder(ctx context.Context, ownerID int64, taskID uint) error {
	return translate(s.taskRepo.SetReminder(ctx, ownerID, taskID, true))
}

func (s *TaskService) DisableReminder(ctx context.Context, ownerID int64, taskID uint) error {
	return translate(s.taskRepo.SetReminder(ctx, ownerID, taskID, false))
}

// DisableAllReminders opts the owner out of reminders until one is enabled again.
func (s *TaskService) DisableAllReminders(ctx context.Context, ownerID int64) error {
	return s.reminderRepo.DisableAll(ctx, ownerID)
}

func translate(err error) error {
	if errors.Is(err, repository.ErrNotActive) {
		return ErrTaskNotFound
	}
	return err
}

func dateValue(d *time.Time) *string {
	if d == nil {
		return nil
	}
	v := model.FormatDate(*d)
	return &v
}
