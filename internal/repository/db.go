package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-bot/internal/logger"
	"todo-bot/internal/model"
)

const legacyReminderTable = "user_reminder_status"

// NewDB opens a SQLite database and brings its schema up to date.
func NewDB(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "todo.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Gorm(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection: SQLite serialises writers anyway and in-memory
	// databases are per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, log); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates missing tables and columns and backfills data written by
// earlier schema versions. It is safe to run on an up-to-date database.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&model.Task{}, &model.UserReminderThrottle{}, &model.UserStats{}); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}

	if err := backfillTasks(db); err != nil {
		return fmt.Errorf("backfill tasks: %w", err)
	}

	if err := migrateLegacyReminders(db); err != nil {
		return fmt.Errorf("migrate reminder status: %w", err)
	}

	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_user_task_number ON tasks (user_id, task_number)").Error; err != nil {
		log.Warn("could not create unique index idx_user_task_number, check tasks for duplicate (user_id, task_number) pairs",
			zap.Error(err))
	}

	return nil
}

// backfillTasks numbers tasks that predate task_number (per owner, in
// insertion order, after the owner's highest existing number) and fills
// defaults for status and remind_me.
func backfillTasks(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("UPDATE tasks SET status = ? WHERE status IS NULL OR status = ''", model.StatusActive).Error; err != nil {
			return err
		}
		if err := tx.Exec("UPDATE tasks SET remind_me = ? WHERE remind_me IS NULL", false).Error; err != nil {
			return err
		}

		var owners []int64
		if err := tx.Model(&model.Task{}).Where("task_number IS NULL").Distinct().Pluck("user_id", &owners).Error; err != nil {
			return err
		}

		for _, owner := range owners {
			var next int
			if err := tx.Model(&model.Task{}).Where("user_id = ?", owner).
				Select("COALESCE(MAX(task_number), 0)").Scan(&next).Error; err != nil {
				return err
			}

			var ids []uint
			if err := tx.Model(&model.Task{}).Where("user_id = ? AND task_number IS NULL", owner).
				Order("id").Pluck("id", &ids).Error; err != nil {
				return err
			}
			for _, id := range ids {
				next++
				if err := tx.Model(&model.Task{}).Where("id = ?", id).Update("task_number", next).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// legacyReminderLayout is how the old reminder table stored local wall-clock time.
const legacyReminderLayout = "2006-01-02 15:04:05"

type legacyReminder struct {
	UserID         int64
	LastRemindedAt *string
}

// migrateLegacyReminders moves owners from the old reminder status table,
// keeping their last reminder time. Unparseable timestamps become NULL.
func migrateLegacyReminders(db *gorm.DB) error {
	if !db.Migrator().HasTable(legacyReminderTable) {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var rows []legacyReminder
		if err := tx.Table(legacyReminderTable).Select("user_id", "last_reminded_at").Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			throttle := model.UserReminderThrottle{OwnerID: row.UserID, LastRemindedAt: parseLegacyTime(row.LastRemindedAt)}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&throttle).Error; err != nil {
				return err
			}
		}
		return tx.Migrator().DropTable(legacyReminderTable)
	})
}

func parseLegacyTime(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, err := time.ParseInLocation(legacyReminderLayout, strings.TrimSpace(*raw), time.Local)
	if err != nil {
		return nil
	}
	return &t
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
