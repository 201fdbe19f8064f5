package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"ticketwatch/internal/bot"
	"ticketwatch/internal/config"
	"ticketwatch/internal/notify"
	"ticketwatch/internal/scheduler"
	"ticketwatch/internal/source"
	"ticketwatch/internal/status"
	"ticketwatch/internal/storage"
	"ticketwatch/internal/watchfile"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ticketwatch", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile string
		once    bool
	)
	flagSet := pflag.NewFlagSet("ticketwatch", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "read KEY=VALUE settings from this file (ignored when missing)")
	flagSet.BoolVar(&once, "once", false, "run a single poll cycle, print its report and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	args := flagSet.Args()
	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(cfg.DatabasePath, args[1:])
	}

	store, err := storage.NewSQLite(cfg.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) > 0 {
		switch args[0] {
		case "import":
			return runImport(ctx, store, args[1:], log)
		default:
			return fmt.Errorf("unknown command: %s", args[0])
		}
	}

	return serve(ctx, cfg, store, once, log)
}

func serve(ctx context.Context, cfg *config.Config, store *storage.SQLite, once bool, log *slog.Logger) error {
	var alerts scheduler.StateStore = store
	if cfg.StateBackend == config.BackendRedis {
		client, err := storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		alerts = storage.NewRedis(client, storage.DefaultRedisKey, log)
	}
	log.Info("alert state backend", "backend", cfg.StateBackend)

	// The editor long-polls, so its requests outlive a push timeout.
	var editorAPI *tgbotapi.BotAPI
	var transports []notify.Transport
	if cfg.TelegramBotToken != "" {
		var err error
		editorAPI, err = notify.NewTelegramAPI(cfg.TelegramBotToken, bot.PollTimeout+cfg.NotifyTimeout)
		if err != nil {
			return err
		}
		log.Info("authorized on telegram", "username", editorAPI.Self.UserName)

		if cfg.TelegramChatID != 0 {
			pushAPI, err := notify.NewTelegramAPI(cfg.TelegramBotToken, cfg.NotifyTimeout)
			if err != nil {
				return err
			}
			transports = append(transports, notify.NewTelegram(pushAPI, cfg.TelegramChatID))
		}
	}
	if cfg.Twilio.Enabled() {
		transports = append(transports, notify.NewVoiceCall(cfg.Twilio, &http.Client{Timeout: cfg.NotifyTimeout}))
	}
	if cfg.AMQPURL != "" {
		pub := notify.NewAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		defer func() { _ = pub.Close() }()
		transports = append(transports, pub)
	}
	fanout := notify.NewFanout(log, transports...)
	if fanout.Len() == 0 {
		return notify.ErrNoTransports
	}

	httpSources := source.FromConfig(cfg.Providers, &http.Client{Timeout: cfg.FetchTimeout})
	if len(httpSources) == 0 {
		return errors.New("no listing provider configured")
	}
	sources := make([]scheduler.ListingSource, 0, len(httpSources))
	for _, s := range httpSources {
		sources = append(sources, s)
	}

	opts := scheduler.DefaultOptions()
	opts.Interval = cfg.PollInterval
	opts.FetchTimeout = cfg.FetchTimeout
	opts.NotifyTimeout = cfg.NotifyTimeout
	opts.Workers = cfg.FetchWorkers

	orch := scheduler.New(store, sources, fanout, alerts, opts, log)

	if once {
		report, err := orch.RunCycle(ctx)
		fmt.Println(scheduler.FormatReport(report))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orch.Run(gctx)
		return nil
	})
	if cfg.StatusAddr != "" {
		srv := status.New(cfg.StatusAddr, orch, log)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if editorAPI != nil {
		b := bot.New(editorAPI, store, alerts, orch, cfg, log)
		g.Go(func() error {
			b.Run(gctx)
			return nil
		})
	}

	log.Info("starting ticketwatch",
		"providers", len(sources),
		"transports", fanout.Len(),
		"interval", opts.Interval,
	)
	err := g.Wait()
	log.Info("ticketwatch stopped")
	return err
}

func runImport(ctx context.Context, store *storage.SQLite, args []string, log *slog.Logger) error {
	if len(args) != 1 {
		return errors.New("usage: ticketwatch import <file>")
	}

	reqs, err := watchfile.Load(args[0])
	if err != nil {
		return err
	}
	for i := range reqs {
		if err := store.CreateWatch(ctx, &reqs[i]); err != nil {
			return fmt.Errorf("import %q: %w", reqs[i].MovieName, err)
		}
		log.Info("watch imported", "id", reqs[i].ID, "movie", reqs[i].MovieName)
	}
	fmt.Printf("Imported %d watch(es) from %s\n", len(reqs), args[0])
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ticketwatch polls ticketing providers and alerts when bookings open
for the watched movies.

Usage:
  ticketwatch [flags]
  ticketwatch [flags] import <file>
  ticketwatch [flags] migrate <up|up-one|down|status|version|reset>

Flags:
%s`, flagSet.FlagUsages())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
