package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ticketwatch/internal/model"
	"ticketwatch/internal/scheduler"
	"ticketwatch/internal/storage"
)

const cmdRemove = "remove"

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Ticket Watch!

Tell me which movie, theatres and cities to watch and I will ping you the moment bookings open.

Quick start:
/add_movie Dune; imax; pvr forum; bangalore

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Watch management:
/add_movie <movie>; <keywords>; <theatres|any>; <locations>
    lists are comma separated, every keyword must appear in the title
/list_movies — show all watches
/remove_movie <movie> — delete every watch for a movie
/remove <id> — delete one watch

Polling:
/check — run a poll cycle now
/status — last cycle report
/alerts — alerts already sent
/forget <key> — allow an alert to fire again`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /add_movie <movie>; <keywords>; <theatres|any>; <locations>")
		return
	}

	req, err := ParseAddArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.store.CreateWatch(ctx, &req); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save watch: %v", err))
		return
	}

	b.log.Info("watch added", "id", req.ID, "movie", req.MovieName, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Watching #%d %s\nkeywords: %s\ntheatres: %s\nlocations: %s",
		req.ID, req.MovieName,
		strings.Join(req.Keywords, ", "),
		req.TheatreLabel(),
		strings.Join(req.Locations, ", ")))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	watches, err := b.store.ListWatches(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatWatchList(watches))
	msg.DisableWebPagePreview = true
	if len(watches) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(watches))
		for _, w := range watches {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("Remove #%d %s", w.ID, w.MovieName),
					fmt.Sprintf("delete_confirm:%d", w.ID),
				),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send watch list", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleRemoveMovie(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /remove_movie <movie>")
		return
	}

	n, err := b.store.DeleteWatchesByMovie(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if n == 0 {
		b.reply(chatID, fmt.Sprintf("No watches for \"%s\".", args))
		return
	}
	b.log.Info("watches removed", "movie", args, "count", n, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Removed %d watch(es) for \"%s\".", n, args))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	if err := b.store.DeleteWatch(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting watch: %v", err))
		return
	}
	b.log.Info("watch removed", "id", id, "movie", w.MovieName, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Watch #%d \"%s\" deleted.", id, w.MovieName))
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64) {
	if b.runner == nil {
		b.reply(chatID, "Polling is not running.")
		return
	}

	report, err := b.runner.RunCycle(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Check failed: %v\n\n%s", err, scheduler.FormatReport(report)))
		return
	}
	b.reply(chatID, scheduler.FormatReport(report))
}

func (b *Bot) handleStatus(chatID int64) {
	if b.runner == nil {
		b.reply(chatID, "Polling is not running.")
		return
	}

	report, ok := b.runner.LastReport()
	if !ok {
		b.reply(chatID, "No cycle has run yet.")
		return
	}
	b.reply(chatID, scheduler.FormatReport(report))
}

func (b *Bot) handleAlerts(ctx context.Context, chatID int64) {
	state, err := b.alerts.Load(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatAlertList(state))
}

func (b *Bot) handleForget(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /forget <movie||theatre||location>")
		return
	}

	key := model.AlertKey(args)
	if _, _, _, ok := key.Parts(); !ok {
		b.reply(chatID, "Alert key must look like movie||theatre||location.")
		return
	}

	if b.runner == nil {
		b.reply(chatID, "Polling is not running.")
		return
	}

	err := b.runner.Forget(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("No fired alert %s.", key))
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	default:
		b.log.Info("alert forget requested", "key", string(key), "chat_id", chatID)
		b.reply(chatID, fmt.Sprintf("Forgot %s. It can fire again on the next cycle.", key))
	}
}
