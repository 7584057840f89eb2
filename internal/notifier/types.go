package notifier

import "time"

const (
	DefaultRatePerSec = 25
	DefaultTemplate   = "⏰ Reminder: %s"
)

type Config struct {
	RatePerSec  int    // sends per second across all chats; 0 means DefaultRatePerSec
	Burst       int    // 0 means RatePerSec
	Template    string // fmt template with one %s for the reminder text
	HistorySize int    // recent deliveries kept for the status page; 0 means 50
}

type HistoryItem struct {
	At         time.Time `json:"at"`
	ExternalID int64     `json:"external_id"`
	OK         bool      `json:"ok"`
	Err        string    `json:"err,omitempty"`
}
