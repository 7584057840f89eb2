package config

import (
	"strings"

	logx "remindbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections, log-safe attrs
// describing them (secrets are reported only as "set"), and the subset of
// changed sections that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	o, n := *oldCfg, *newCfg

	if o.Telegram.Token != n.Telegram.Token ||
		!trimEq(o.Telegram.PollTimeout, n.Telegram.PollTimeout) ||
		!trimEq(o.Telegram.APIURL, n.Telegram.APIURL) ||
		o.Telegram.AlertChat != n.Telegram.AlertChat {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", o.Telegram.Token != n.Telegram.Token),
			logx.String("telegram.poll_timeout", strings.TrimSpace(n.Telegram.PollTimeout)),
			logx.Bool("telegram.alert_chat_set", n.Telegram.AlertChat != 0),
		)
		// alert_chat is hot; the adapter itself is not rebuilt.
		if o.Telegram.Token != n.Telegram.Token ||
			!trimEq(o.Telegram.PollTimeout, n.Telegram.PollTimeout) ||
			!trimEq(o.Telegram.APIURL, n.Telegram.APIURL) {
			restart = append(restart, "telegram")
		}
	}

	if o.Logging != n.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", n.Logging.Level),
			logx.Bool("logging.console", n.Logging.Console),
			logx.Bool("logging.file_enabled", n.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", n.Logging.Alert.Enabled),
		)
	}

	if o.Storage != n.Storage {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", n.Storage.Driver),
			logx.Bool("storage.dsn_set", strings.TrimSpace(n.Storage.DSN) != ""),
		)
	}

	if o.Scheduler != n.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", n.Scheduler.Timezone),
			logx.String("scheduler.overdue_policy", n.Scheduler.OverduePolicy),
			logx.String("scheduler.maintenance_spec", n.Scheduler.MaintenanceSpec),
			logx.Int("scheduler.send_rate_per_sec", n.Scheduler.SendRatePerSec),
		)
		// The send rate is hot; zone, policy and sweep are fixed at start.
		so, sn := o.Scheduler, n.Scheduler
		so.SendRatePerSec, sn.SendRatePerSec = 0, 0
		if so != sn {
			restart = append(restart, "scheduler")
		}
	}

	if o.Bot != n.Bot {
		changed = append(changed, "bot")
		restart = append(restart, "bot")
		attrs = append(attrs,
			logx.Int("bot.workers", n.Bot.Workers),
			logx.String("bot.handler_timeout", n.Bot.HandlerTimeout),
		)
	}

	if o.Debug != n.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", n.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(n.Debug.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(n.Debug.Token) != ""),
		)
	}

	return changed, attrs, restart
}

func trimEq(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }
