package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todo-bot/internal/model"
	"todo-bot/internal/repository"
)

// Notifier delivers the aggregate "tasks due today" reminder to an owner.
// It returns ErrRecipientUnreachable (possibly wrapped) when the owner can no
// longer be messaged.
type Notifier interface {
	NotifyDueTasks(ctx context.Context, ownerID int64, count int) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Candidates int
	Sent       int
	OptedOut   int
	Failed     int
}

// ReminderService finds owners with reminder tasks due today and notifies
// them, at most once per throttle interval.
type ReminderService struct {
	reminderRepo *repository.ReminderRepository
	notifier     Notifier
	throttle     time.Duration
	log          *zap.Logger
	now          Clock
}

func NewReminderService(reminderRepo *repository.ReminderRepository, notifier Notifier, throttle time.Duration, log *zap.Logger, now Clock) *ReminderService {
	if now == nil {
		now = time.Now
	}
	if throttle <= 0 {
		throttle = time.Hour
	}
	return &ReminderService{
		reminderRepo: reminderRepo,
		notifier:     notifier,
		throttle:     throttle,
		log:          log.Named("reminders"),
		now:          now,
	}
}

// Sweep runs one reminder pass. Failures for one owner are logged and do not
// stop the pass; only a failing candidate query or a cancelled ctx returns an error.
func (s *ReminderService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	candidates, err := s.reminderRepo.Candidates(ctx)
	if err != nil {
		return result, err
	}
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !s.due(candidate) {
			continue
		}

		sent, err := s.remindSafely(ctx, candidate.OwnerID)
		switch {
		case errors.Is(err, ErrRecipientUnreachable):
			result.OptedOut++
		case err != nil:
			result.Failed++
			s.log.Warn("reminder failed", zap.Int64("user_id", candidate.OwnerID), zap.Error(err))
		case sent:
			result.Sent++
		}
	}

	s.log.Info("reminder sweep finished",
		zap.Int("candidates", result.Candidates),
		zap.Int("sent", result.Sent),
		zap.Int("opted_out", result.OptedOut),
		zap.Int("failed", result.Failed))
	return result, nil
}

// remindSafely turns a panic while reminding one owner into an error, so the
// rest of the sweep still runs.
func (s *ReminderService) remindSafely(ctx context.Context, ownerID int64) (sent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while reminding owner",
				zap.Int64("user_id", ownerID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			sent, err = false, fmt.Errorf("remind owner %d: panic: %v", ownerID, r)
		}
	}()
	return s.remind(ctx, ownerID)
}

// remind re-reads the owner's state, since users toggle reminders while the
// sweep runs, and sends one notification if anything is still due today.
func (s *ReminderService) remind(ctx context.Context, ownerID int64) (bool, error) {
	throttle, err := s.reminderRepo.Throttle(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if throttle == nil || !s.due(*throttle) {
		return false, nil
	}

	now := s.now()
	count, err := s.reminderRepo.CountDue(ctx, ownerID, model.FormatDate(now))
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	if err := s.notifier.NotifyDueTasks(ctx, ownerID, int(count)); err != nil {
		if errors.Is(err, ErrRecipientUnreachable) {
			s.log.Info("owner unreachable, disabling reminders", zap.Int64("user_id", ownerID), zap.Error(err))
			if derr := s.reminderRepo.DisableAll(ctx, ownerID); derr != nil {
				return false, derr
			}
		}
		return false, err
	}

	if err := s.reminderRepo.MarkReminded(ctx, ownerID, now); err != nil {
		return true, err
	}
	s.log.Info("reminder sent", zap.Int64("user_id", ownerID), zap.Int64("due_today", count))
	return true, nil
}

func (s *ReminderService) due(t model.UserReminderThrottle) bool {
	if t.LastRemindedAt == nil {
		return true
	}
	return s.now().Sub(*t.LastRemindedAt) >= t.Interval(s.throttle)
}
