package telegram

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration // long-poll timeout; 0 means 10s
	APIURL      string        // optional Bot API endpoint override
}
