package app

import (
	"context"
	"strings"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/debug"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

const defaultSQLitePath = "./data/remindbot.db"

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alert.Enabled,
			ChatID:     cfg.Telegram.AlertChat,
			MinLevel:   cfg.Logging.Alert.MinLevel,
			RatePerSec: cfg.Logging.Alert.RatePerSec,
		},
	}
}

func mapTelegram(cfg *config.Config) (telegram.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       strings.TrimSpace(cfg.Telegram.Token),
		PollTimeout: d.PollTimeout,
		APIURL:      strings.TrimSpace(cfg.Telegram.APIURL),
	}, nil
}

// MapStorage converts the storage section. An empty driver means sqlite.
func MapStorage(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	out := storage.Config{Driver: driver, DSN: strings.TrimSpace(sc.DSN)}
	if driver == "sqlite" {
		out.Path = strings.TrimSpace(sc.Path)
		if out.Path == "" {
			out.Path = defaultSQLitePath
		}
		d, err := cfg.Durations()
		if err != nil {
			return storage.Config{}, err
		}
		out.BusyTimeout = d.BusyTimeout
	}
	return out, nil
}

// OpenStore opens the configured store and applies migrations.
// The CLI uses it for offline commands.
func OpenStore(ctx context.Context, cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := MapStorage(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
}

func mapScheduler(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Timezone:        strings.TrimSpace(cfg.Scheduler.Timezone),
		OverduePolicy:   strings.TrimSpace(cfg.Scheduler.OverduePolicy),
		MaintenanceSpec: strings.TrimSpace(cfg.Scheduler.MaintenanceSpec),
	}
}

func mapNotifier(cfg *config.Config) notifier.Config {
	return notifier.Config{RatePerSec: cfg.Scheduler.SendRatePerSec}
}

func mapBot(cfg *config.Config) (bot.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return bot.Config{}, err
	}
	return bot.Config{Workers: cfg.Bot.Workers, HandlerTimeout: d.HandlerTimeout}, nil
}

func mapDebug(cfg *config.Config) (debug.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return debug.Config{}, err
	}
	return debug.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          strings.TrimSpace(cfg.Debug.Addr),
		Token:         strings.TrimSpace(cfg.Debug.Token),
		AllowInsecure: cfg.Debug.AllowInsecure,
		ReadTimeout:   d.DebugRead,
		IdleTimeout:   d.DebugIdle,
	}, nil
}
