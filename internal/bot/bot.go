package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ticketwatch/internal/config"
	"ticketwatch/internal/model"
	"ticketwatch/internal/scheduler"
	"ticketwatch/internal/storage"
)

// PollTimeout is how long one getUpdates long poll may wait for updates.
const PollTimeout = 60 * time.Second

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// CycleRunner triggers and reports poll cycles and owns purges of fired
// alerts, so a purge never interleaves with a cycle's save.
type CycleRunner interface {
	RunCycle(ctx context.Context) (scheduler.Report, error)
	LastReport() (scheduler.Report, bool)
	Forget(ctx context.Context, key model.AlertKey) error
}

// AlertReader lists fired alerts.
type AlertReader interface {
	Load(ctx context.Context) (model.AlertState, error)
}

// Bot is the Telegram bot that edits watch requests.
type Bot struct {
	api    telegramAPI
	store  storage.WatchStore
	alerts AlertReader
	runner CycleRunner
	cfg    *config.Config
	log    *slog.Logger
}

// New creates a Bot on an authenticated bot API client.
func New(api *tgbotapi.BotAPI, store storage.WatchStore, alerts AlertReader, runner CycleRunner, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:    api,
		store:  store,
		alerts: alerts,
		runner: runner,
		cfg:    cfg,
		log:    log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(PollTimeout / time.Second)

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "add_movie", "add":
		b.handleAdd(ctx, chatID, args)
	case "list_movies", "list":
		b.handleList(ctx, chatID)
	case "remove_movie":
		b.handleRemoveMovie(ctx, chatID, args)
	case cmdRemove:
		b.handleRemove(ctx, chatID, args)
	case "check":
		b.handleCheck(ctx, chatID)
	case "status":
		b.handleStatus(chatID)
	case "alerts":
		b.handleAlerts(ctx, chatID)
	case "forget":
		b.handleForget(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
