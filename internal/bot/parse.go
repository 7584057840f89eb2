package bot

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	ErrUsage   = errors.New("missing time or reminder text")
	ErrBadTime = errors.New("time must look like HH:MM")
	ErrBadDate = errors.New("date must look like YYYY-MM-DD")
	ErrPast    = errors.New("that moment has already passed")
)

// ParseRemind reads the arguments of /remind in one of two forms:
//
//	HH:MM text              today, or tomorrow if HH:MM already passed
//	YYYY-MM-DD HH:MM text   that exact moment; rejected if not in the future
//
// Times are read in loc. The returned text keeps its inner whitespace.
func ParseRemind(args string, now time.Time, loc *time.Location) (time.Time, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	first, rest := cutField(args)
	if first == "" || strings.TrimSpace(rest) == "" {
		return time.Time{}, "", ErrUsage
	}
	now = now.In(loc)

	if strings.Contains(first, ":") {
		h, m, err := parseClock(first)
		if err != nil {
			return time.Time{}, "", err
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, loc)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, strings.TrimSpace(rest), nil
	}

	day, err := time.ParseInLocation("2006-01-02", first, loc)
	if err != nil {
		return time.Time{}, "", ErrBadDate
	}
	clock, text := cutField(rest)
	if strings.TrimSpace(text) == "" {
		return time.Time{}, "", ErrUsage
	}
	h, m, err := parseClock(clock)
	if err != nil {
		return time.Time{}, "", err
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
	if !at.After(now) {
		return time.Time{}, "", ErrPast
	}
	return at, strings.TrimSpace(text), nil
}

func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, ErrBadTime
	}
	return t.Hour(), t.Minute(), nil
}

// cutField splits off the first whitespace-separated token.
func cutField(s string) (head, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// splitCommand reads "/name@bot args" into its name and raw arguments.
func splitCommand(text string) (name, args string, ok bool) {
	head, rest := cutField(text)
	if !strings.HasPrefix(head, "/") || len(head) < 2 {
		return "", "", false
	}
	name = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(rest), name != ""
}
