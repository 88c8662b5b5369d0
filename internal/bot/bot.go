package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"todo-bot/internal/config"
	"todo-bot/internal/service"
)

// Client is the part of the Telegram Bot API the bot relies on.
// *tgbotapi.BotAPI satisfies it.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// userBacklogLimit caps the updates waiting for one user. Beyond it new
// updates of that user are dropped rather than stalling the poller.
const userBacklogLimit = 100

// userQueue holds the pending updates of one user. It lives only while a
// worker is draining it.
type userQueue struct {
	pending []tgbotapi.Update
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      Client
	tasks    *service.TaskService
	sessions *sessionStore
	pageSize int
	log      *zap.Logger

	mu     sync.Mutex
	queues map[int64]*userQueue
	wg     sync.WaitGroup
}

func New(token string, tasks *service.TaskService, cfg *config.Config, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return NewWithClient(api, tasks, cfg.PageSize, log), nil
}

// NewWithClient builds a bot on top of an existing API client.
func NewWithClient(api Client, tasks *service.TaskService, pageSize int, log *zap.Logger) *Bot {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &Bot{
		api:      api,
		tasks:    tasks,
		sessions: newSessionStore(),
		pageSize: pageSize,
		log:      log.Named("bot"),
		queues:   make(map[int64]*userQueue),
	}
}

// Start begins polling updates until ctx is cancelled. Updates of one user
// are handled in arrival order; different users are served concurrently.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		userID, ok := updateUserID(update)
		if !ok {
			continue
		}
		b.dispatch(ctx, userID, update)
	}

	b.wg.Wait()
	b.log.Info("polling stopped")
	return nil
}

// dispatch never blocks the poller. A user without a queue gets a fresh one
// and a worker that exits as soon as the queue runs dry.
func (b *Bot) dispatch(ctx context.Context, userID int64, update tgbotapi.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue, ok := b.queues[userID]
	if !ok {
		queue = &userQueue{}
		b.queues[userID] = queue
		b.wg.Add(1)
		go b.serve(ctx, userID, queue)
	}
	if len(queue.pending) >= userBacklogLimit {
		b.log.Warn("user backlog full, dropping update",
			zap.Int64("user_id", userID),
			zap.Int("update_id", update.UpdateID))
		return
	}
	queue.pending = append(queue.pending, update)
}

func (b *Bot) serve(ctx context.Context, userID int64, queue *userQueue) {
	defer b.wg.Done()
	for {
		update, ok := b.next(ctx, userID, queue)
		if !ok {
			return
		}
		b.handleUpdate(ctx, update)
	}
}

// next pops the oldest pending update. When nothing is left, or ctx is done,
// the queue is removed so the next update of the user starts a new worker.
func (b *Bot) next(ctx context.Context, userID int64, queue *userQueue) (tgbotapi.Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(queue.pending) == 0 || ctx.Err() != nil {
		if dropped := len(queue.pending); dropped > 0 {
			b.log.Info("shutting down, pending updates dropped", zap.Int64("user_id", userID), zap.Int("count", dropped))
		}
		delete(b.queues, userID)
		return tgbotapi.Update{}, false
	}
	update := queue.pending[0]
	queue.pending[0] = tgbotapi.Update{}
	queue.pending = queue.pending[1:]
	return update, true
}

func updateUserID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	default:
		return 0, false
	}
}

// handleUpdate never lets a failing handler take the loop down.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		err = b.handleMessage(ctx, update.Message)
	}
	if err != nil {
		b.log.Warn("handle update", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

// NotifyDueTasks sends the aggregate reminder. A recipient who blocked the
// bot yields service.ErrRecipientUnreachable.
func (b *Bot) NotifyDueTasks(ctx context.Context, ownerID int64, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.sendWithReplyMarkup(ownerID, dueTodayText(count), dueTodayMarkup())
	if isUnreachable(err) {
		return fmt.Errorf("%w: %v", service.ErrRecipientUnreachable, err)
	}
	return err
}

func (b *Bot) now() time.Time {
	return b.tasks.Now()
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, nil)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewRemoveKeyboard(true))
}

// editView replaces text and keyboard of a shown message unless both are
// already what the user sees.
func (b *Bot) editView(msg *tgbotapi.Message, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if msg.Text == text && sameMarkup(msg.ReplyMarkup, &markup) {
		b.log.Debug("skip edit, view unchanged", zap.Int("message_id", msg.MessageID))
		return nil
	}
	return b.request(tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, text, markup))
}

// editText replaces the text and drops any inline keyboard.
func (b *Bot) editText(msg *tgbotapi.Message, text string) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if msg.Text == text && msg.ReplyMarkup == nil {
		return nil
	}
	return b.request(tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text))
}

// editMarkup swaps only the inline keyboard of a shown message.
func (b *Bot) editMarkup(msg *tgbotapi.Message, markup tgbotapi.InlineKeyboardMarkup) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if sameMarkup(msg.ReplyMarkup, &markup) {
		b.log.Debug("skip edit, keyboard unchanged", zap.Int("message_id", msg.MessageID))
		return nil
	}
	return b.request(tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, markup))
}

func (b *Bot) deleteMessage(msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	if err := b.request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.log.Debug("delete message", zap.Error(err))
	}
}

// request performs a non-message API call. "message is not modified" is
// not an error for us.
func (b *Bot) request(c tgbotapi.Chattable) error {
	_, err := b.api.Request(c)
	if isNotModified(err) {
		return nil
	}
	return err
}

func apiError(err error) (*tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return &val, true
	}
	return nil, false
}

func isNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "message is not modified")
}

func isUnreachable(err error) bool {
	apiErr, ok := apiError(err)
	return ok && apiErr.Code == http.StatusForbidden
}
