package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "file-token"
  poll_timeout: 20s
logging:
  level: info
  console: true
storage:
  driver: sqlite
  path: ./data/remindbot.db
scheduler:
  timezone: UTC
  overdue_policy: skip
  maintenance_spec: "@every 10m"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDecodeYAMLAndJSON(t *testing.T) {
	t.Parallel()

	y, err := Decode("remindbot.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "file-token", y.Telegram.Token)
	require.Equal(t, "sqlite", y.Storage.Driver)
	require.Equal(t, "@every 10m", y.Scheduler.MaintenanceSpec)

	j, err := Decode("remindbot.json", []byte(`{"storage":{"driver":"postgres","dsn":"postgres://x"},"scheduler":{"overdue_policy":"fire"}}`))
	require.NoError(t, err)
	require.Equal(t, "postgres", j.Storage.Driver)
	require.Equal(t, "fire", j.Scheduler.OverduePolicy)
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file string
		body string
	}{
		{"unknown json key", "c.json", `{"storage":{"driver":"sqlite","pathh":"x"}}`},
		{"unknown yaml key", "c.yml", "scheduler:\n  tz: UTC\n"},
		{"trailing data", "c.json", `{"logging":{}} {"logging":{}}`},
		{"bad yaml", "c.yaml", "telegram: [unclosed"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tc.file, []byte(tc.body))
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero value is fine", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"bad busy timeout", func(c *Config) { c.Storage.BusyTimeout = "soon" }, "storage.busy_timeout"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "scheduler.timezone"},
		{"bad policy", func(c *Config) { c.Scheduler.OverduePolicy = "retry" }, "scheduler.overdue_policy"},
		{"bad cron", func(c *Config) { c.Scheduler.MaintenanceSpec = "every tuesday" }, "scheduler.maintenance_spec"},
		{"sweep off", func(c *Config) { c.Scheduler.MaintenanceSpec = "off" }, ""},
		{"negative duration", func(c *Config) { c.Telegram.PollTimeout = "-1s" }, "telegram.poll_timeout"},
		{"alert without chat", func(c *Config) { c.Logging.Alert.Enabled = true }, "telegram.alert_chat"},
		{"debug bad addr", func(c *Config) { c.Debug.Enabled = true; c.Debug.Addr = "6060" }, "debug.addr"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var c Config
			tc.mutate(&c)
			err := Validate(&c)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParseAppliesEnvOverrides(t *testing.T) {
	p := writeFile(t, "remindbot.yaml", sampleYAML)
	t.Setenv("REMINDBOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("REMINDBOT_STORAGE_DRIVER", "postgres")
	t.Setenv("REMINDBOT_STORAGE_DSN", "postgres://bot@localhost/remindbot")
	t.Setenv("REMINDBOT_LOG_LEVEL", "debug")

	cfg, err := NewManager(p).Parse()
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Telegram.Token)
	require.Equal(t, "postgres", cfg.Storage.Driver)
	require.Equal(t, "postgres://bot@localhost/remindbot", cfg.Storage.DSN)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "UTC", cfg.Scheduler.Timezone)
}

func TestParseValidatesAfterOverrides(t *testing.T) {
	p := writeFile(t, "remindbot.yaml", sampleYAML)
	t.Setenv("REMINDBOT_STORAGE_DRIVER", "postgres")

	_, err := NewManager(p).Parse()
	require.ErrorContains(t, err, "storage.dsn")
}

func TestDurations(t *testing.T) {
	t.Parallel()

	var c Config
	d, err := c.Durations()
	require.NoError(t, err)
	require.Equal(t, Durations{PollTimeout: DefaultPollTimeout}, d)

	c.Telegram.PollTimeout = "0s"
	c.Bot.HandlerTimeout = " 250ms "
	c.Debug.IdleTimeout = "2m"
	d, err = c.Durations()
	require.NoError(t, err)
	require.Equal(t, DefaultPollTimeout, d.PollTimeout)
	require.Equal(t, 250*time.Millisecond, d.HandlerTimeout)
	require.Equal(t, 2*time.Minute, d.DebugIdle)

	c.Bot.HandlerTimeout = "fast"
	c.Storage.BusyTimeout = "-1s"
	_, err = c.Durations()
	require.ErrorContains(t, err, "bot.handler_timeout")
	require.ErrorContains(t, err, "storage.busy_timeout")
	var de *DurationError
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, err, errNegativeDuration)
}

func TestDecodeYAMLShapes(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("empty.yaml", []byte("  \n"))
	require.NoError(t, err)
	require.Equal(t, Config{}, *cfg)

	body := "defaults: &d\n  level: warn\nlogging: *d\ntelegram:\n  alert_chat: -100\n"
	_, err = Decode("alias.yaml", []byte(body))
	require.ErrorContains(t, err, "defaults", "aliases resolve but unknown top-level keys still fail")

	cfg, err = Decode("alias.yaml", []byte("telegram:\n  alert_chat: -100\nlogging: &d\n  level: warn\n"))
	require.NoError(t, err)
	require.Equal(t, int64(-100), cfg.Telegram.AlertChat)
	require.Equal(t, "warn", cfg.Logging.Level)

	_, err = Decode("merge.yaml", []byte("base: &b\n  level: warn\nlogging:\n  <<: *b\n"))
	require.ErrorContains(t, err, "merge.yaml:4")

	_, err = Decode("complex.yml", []byte("? [a, b]\n: 1\n"))
	require.ErrorContains(t, err, "complex.yml:1: config keys must be plain strings")
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	a, err := Decode("a.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	b := *a
	b.Logging.Level = "debug"
	b.Scheduler.SendRatePerSec = 10
	b.Telegram.Token = "rotated"

	changed, attrs, restart := SummarizeConfigChange(a, &b)
	require.ElementsMatch(t, []string{"telegram", "logging", "scheduler"}, changed)
	require.ElementsMatch(t, []string{"telegram"}, restart)
	require.NotEmpty(t, attrs)

	c := b
	c.Scheduler.Timezone = "Europe/Berlin"
	c.Storage.Path = "./other.db"
	_, _, restart = SummarizeConfigChange(&b, &c)
	require.ElementsMatch(t, []string{"scheduler", "storage"}, restart)

	changed, _, restart = SummarizeConfigChange(a, a)
	require.Empty(t, changed)
	require.Empty(t, restart)
}

func TestSubscribeKeepsNewest(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	first, second := &Config{}, &Config{}
	first.Logging.Level = "info"
	second.Logging.Level = "debug"

	m.publish(first)
	m.publish(second)
	require.Same(t, second, <-ch)

	m.Unsubscribe(ch)
	_, open := <-ch
	require.False(t, open)
}

func TestWatchPublishesChangedFile(t *testing.T) {
	p := writeFile(t, "remindbot.yaml", sampleYAML)
	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)
	updated := sampleYAML + "debug:\n  enabled: true\n  addr: 127.0.0.1:0\n"
	require.NoError(t, os.WriteFile(p, []byte(updated), 0o600))

	select {
	case cfg := <-ch:
		require.True(t, cfg.Debug.Enabled)
		require.Same(t, cfg, m.Get())
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}

func TestReloadRejectedByValidator(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "remindbot.yaml", sampleYAML)
	m := NewManager(p)
	orig, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return context.Canceled })

	require.NoError(t, os.WriteFile(p, []byte(sampleYAML+"bot:\n  workers: 8\n"), 0o600))
	require.False(t, m.reload(context.Background()))
	require.Same(t, orig, m.Get())

	m.SetValidator(nil)
	require.True(t, m.reload(context.Background()))
	require.Equal(t, 8, m.Get().Bot.Workers)
	require.False(t, m.reload(context.Background()), "unchanged content is not republished")
}
