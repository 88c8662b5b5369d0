package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"todo-bot/internal/model"
	"todo-bot/internal/repository"
)

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	now       time.Time
	tasks     *TaskService
	taskRepo  *repository.TaskRepository
	reminders *repository.ReminderRepository
	notifier  *fakeNotifier
	sweeper   *ReminderService
}

type notification struct {
	ownerID int64
	count   int
}

type fakeNotifier struct {
	sent   []notification
	errs   map[int64]error
	panics map[int64]bool
}

func (n *fakeNotifier) NotifyDueTasks(_ context.Context, ownerID int64, count int) error {
	if n.panics[ownerID] {
		panic(fmt.Sprintf("notifier broke for %d", ownerID))
	}
	if err := n.errs[ownerID]; err != nil {
		return err
	}
	n.sent = append(n.sent, notification{ownerID: ownerID, count: count})
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		ctx:       context.Background(),
		db:        db,
		now:       time.Date(2025, 10, 16, 12, 0, 0, 0, time.UTC),
		taskRepo:  repository.NewTaskRepository(db),
		reminders: repository.NewReminderRepository(db),
		notifier:  &fakeNotifier{errs: map[int64]error{}},
	}
	clock := func() time.Time { return f.now }
	f.tasks = NewTaskService(f.taskRepo, f.reminders, repository.NewStatsRepository(db), zap.NewNop(), clock)
	f.sweeper = NewReminderService(f.reminders, f.notifier, time.Hour, zap.NewNop(), clock)
	return f
}

func (f *fixture) date(offsetDays int) *time.Time {
	d := f.now.AddDate(0, 0, offsetDays)
	return &d
}

func TestCreateCompleteEditScenario(t *testing.T) {
	f := newFixture(t)
	deadline := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	task, err := f.tasks.CreateTask(f.ctx, 42, "buy milk", &deadline)
	require.NoError(t, err)
	assert.Equal(t, 1, task.TaskNumber)
	assert.Equal(t, model.StatusActive, task.Status)
	assert.Equal(t, "2025-12-31", *task.Deadline)

	result, err := f.tasks.CompleteTask(f.ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, result.Task.Status)
	assert.False(t, result.Task.RemindMe)
	assert.Equal(t, 1, result.CompletedCount)
	assert.Empty(t, result.Milestone)

	err = f.tasks.UpdateDescription(f.ctx, 42, 1, "buy oat milk")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.tasks.CompleteTask(f.ctx, 42, 1)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	f := newFixture(t)

	_, err := f.tasks.CreateTask(f.ctx, 1, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = f.tasks.CreateTask(f.ctx, 1, "real", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.tasks.UpdateDescription(f.ctx, 1, 1, ""), ErrEmptyDescription)
}

func TestListTasksToday(t *testing.T) {
	f := newFixture(t)
	for _, d := range []*time.Time{f.date(0), f.date(1), nil, f.date(0), f.date(-1)} {
		_, err := f.tasks.CreateTask(f.ctx, 3, "task", d)
		require.NoError(t, err)
	}
	_, err := f.tasks.CompleteTask(f.ctx, 3, 4)
	require.NoError(t, err)

	today, err := f.tasks.ListTasks(f.ctx, 3, FilterToday, model.StatusActive, nil)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, 1, today[0].TaskNumber)

	all, err := f.tasks.ListTasks(f.ctx, 3, FilterAll, model.StatusActive, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].TaskNumber, all[i].TaskNumber)
	}

	history, err := f.tasks.ListTasks(f.ctx, 3, FilterAll, model.StatusCompleted, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 4, history[0].TaskNumber)
}

func TestMilestoneOnTenthCompletion(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 10; i++ {
		_, err := f.tasks.CreateTask(f.ctx, 9, fmt.Sprintf("task %d", i), nil)
		require.NoError(t, err)
	}
	for i := 1; i <= 10; i++ {
		result, err := f.tasks.CompleteTask(f.ctx, 9, i)
		require.NoError(t, err)
		assert.Equal(t, i, result.CompletedCount)
		if i == 10 {
			assert.NotEmpty(t, result.Milestone)
		} else {
			assert.Empty(t, result.Milestone)
		}
	}
}

func TestRegisterUserReportsCompletedCount(t *testing.T) {
	f := newFixture(t)

	count, err := f.tasks.RegisterUser(f.ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.tasks.CreateTask(f.ctx, 5, "buy milk", nil)
	require.NoError(t, err)
	_, err = f.tasks.CompleteTask(f.ctx, 5, 1)
	require.NoError(t, err)

	count, err = f.tasks.RegisterUser(f.ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteClearsTaskAndRejectsCompleted(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.CreateTask(f.ctx, 5, "one", nil)
	require.NoError(t, err)
	_, err = f.tasks.CreateTask(f.ctx, 5, "two", nil)
	require.NoError(t, err)
	_, err = f.tasks.CompleteTask(f.ctx, 5, 2)
	require.NoError(t, err)

	deleted, err := f.tasks.DeleteTask(f.ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "one", deleted.Description)

	_, err = f.tasks.GetActive(f.ctx, 5, 1)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.tasks.DeleteTask(f.ctx, 5, 2)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func (f *fixture) remindable(t *testing.T, owner int64, deadline *time.Time) *model.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(f.ctx, owner, "remind me", deadline)
	require.NoError(t, err)
	require.NoError(t, f.tasks.EnableReminder(f.ctx, owner, task.ID))
	return task
}

func TestSweepScenario(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 7, f.date(0))

	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification{ownerID: 7, count: 1}, f.notifier.sent[0])

	throttle, err := f.reminders.Throttle(f.ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, throttle.LastRemindedAt)
	assert.True(t, f.now.Equal(*throttle.LastRemindedAt))

	f.now = f.now.Add(10 * time.Minute)
	result, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSweepThrottleBoundary(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantSent bool
	}{
		{"59 minutes", 59 * time.Minute, false},
		{"exactly an hour", time.Hour, true},
		{"61 minutes", 61 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.remindable(t, 7, f.date(0))
			require.NoError(t, f.reminders.MarkReminded(f.ctx, 7, f.now.Add(-tt.elapsed)))

			result, err := f.sweeper.Sweep(f.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, result.Sent == 1)
			assert.Equal(t, tt.wantSent, len(f.notifier.sent) == 1)
		})
	}
}

func TestSweepSkipsOwnersWithNothingDueToday(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 8, f.date(1))
	f.remindable(t, 9, nil)

	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Zero(t, result.Sent)
	assert.Empty(t, f.notifier.sent)

	throttle, err := f.reminders.Throttle(f.ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, throttle.LastRemindedAt)
}

func TestSweepOptsOutUnreachableOwner(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 11, f.date(0))
	f.remindable(t, 12, f.date(0))
	f.notifier.errs[11] = fmt.Errorf("send: %w", ErrRecipientUnreachable)

	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OptedOut)
	assert.Equal(t, 1, result.Sent)

	throttle, err := f.reminders.Throttle(f.ctx, 11)
	require.NoError(t, err)
	assert.Nil(t, throttle)
	on := true
	still, err := f.tasks.ListTasks(f.ctx, 11, FilterAll, model.StatusActive, &on)
	require.NoError(t, err)
	assert.Empty(t, still)
}

func TestSweepSurvivesPanicForOneOwner(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 14, f.date(0))
	f.remindable(t, 15, f.date(0))
	f.notifier.panics = map[int64]bool{14: true}

	var result SweepResult
	require.NotPanics(t, func() {
		var err error
		result, err = f.sweeper.Sweep(f.ctx)
		require.NoError(t, err)
	})
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []notification{{ownerID: 15, count: 1}}, f.notifier.sent)

	throttle, err := f.reminders.Throttle(f.ctx, 14)
	require.NoError(t, err)
	require.NotNil(t, throttle)
	assert.Nil(t, throttle.LastRemindedAt)
}

func TestSweepKeepsStateOnTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 13, f.date(0))
	f.notifier.errs[13] = errors.New("timeout")

	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	throttle, err := f.reminders.Throttle(f.ctx, 13)
	require.NoError(t, err)
	require.NotNil(t, throttle)
	assert.Nil(t, throttle.LastRemindedAt)

	delete(f.notifier.errs, 13)
	result, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestSweepHonoursPerOwnerInterval(t *testing.T) {
	f := newFixture(t)
	f.remindable(t, 14, f.date(0))
	require.NoError(t, f.reminders.MarkReminded(f.ctx, 14, f.now.Add(-90*time.Minute)))
	require.NoError(t, f.db.Model(&model.UserReminderThrottle{}).
		Where("user_id = ?", 14).Update("interval_minutes", 120).Error)

	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
}
