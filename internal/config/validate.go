package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks a parsed config without touching the network or disk.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := cfg.Durations()
	add(err)

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add(errors.New("storage.dsn: required for postgres"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q (want sqlite or postgres)", cfg.Storage.Driver))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Scheduler.OverduePolicy)) {
	case "", "skip", "fire":
	default:
		add(fmt.Errorf("scheduler.overdue_policy: %q (want skip or fire)", cfg.Scheduler.OverduePolicy))
	}
	if spec := strings.TrimSpace(cfg.Scheduler.MaintenanceSpec); spec != "" && !strings.EqualFold(spec, "off") {
		p := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := p.Parse(spec); err != nil {
			add(fmt.Errorf("scheduler.maintenance_spec: %w", err))
		}
	}
	if cfg.Scheduler.SendRatePerSec < 0 {
		add(errors.New("scheduler.send_rate_per_sec: must be >= 0"))
	}

	if cfg.Bot.Workers < 0 {
		add(errors.New("bot.workers: must be >= 0"))
	}

	if cfg.Logging.Alert.Enabled && cfg.Telegram.AlertChat == 0 {
		add(errors.New("logging.alert: enabled but telegram.alert_chat is not set"))
	}

	if cfg.Debug.Enabled {
		addr := strings.TrimSpace(cfg.Debug.Addr)
		if addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				add(fmt.Errorf("debug.addr: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}
