package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPollTimeout applies when telegram.poll_timeout is empty or zero.
const DefaultPollTimeout = 10 * time.Second

// Durations are the duration-valued keys of Config, parsed. Zero means the
// consumer's default except where noted.
type Durations struct {
	PollTimeout    time.Duration // never zero; see DefaultPollTimeout
	BusyTimeout    time.Duration
	HandlerTimeout time.Duration
	DebugRead      time.Duration
	DebugIdle      time.Duration
}

// DurationError names the config key holding an unusable duration.
type DurationError struct {
	Key string
	Raw string
	Err error
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%s: invalid duration %q: %v", e.Key, e.Raw, e.Err)
}

func (e *DurationError) Unwrap() error { return e.Err }

var errNegativeDuration = errors.New("must be >= 0")

// Durations parses every duration key. All bad keys are reported together.
func (c *Config) Durations() (Durations, error) {
	var (
		d    Durations
		errs []error
	)
	parse := func(key, raw string, dst *time.Duration) {
		v, err := parseDuration(key, raw)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = v
	}
	parse("telegram.poll_timeout", c.Telegram.PollTimeout, &d.PollTimeout)
	parse("storage.busy_timeout", c.Storage.BusyTimeout, &d.BusyTimeout)
	parse("bot.handler_timeout", c.Bot.HandlerTimeout, &d.HandlerTimeout)
	parse("debug.read_timeout", c.Debug.ReadTimeout, &d.DebugRead)
	parse("debug.idle_timeout", c.Debug.IdleTimeout, &d.DebugIdle)

	if d.PollTimeout == 0 {
		d.PollTimeout = DefaultPollTimeout
	}
	return d, errors.Join(errs...)
}

func parseDuration(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, &DurationError{Key: key, Raw: raw, Err: err}
	}
	if v < 0 {
		return 0, &DurationError{Key: key, Raw: raw, Err: errNegativeDuration}
	}
	return v, nil
}
