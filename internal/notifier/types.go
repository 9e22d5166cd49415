package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled     bool
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
}

type HistoryItem struct {
	At          time.Time
	Destination string
	Kind        string
	OK          bool
}

// NotificationEvent is emitted on the event bus for delivery outcomes.
type NotificationEvent struct {
	Destination string    `json:"destination"`
	Kind        string    `json:"kind"`
	ChatID      int64     `json:"chat_id,omitempty"`
	At          time.Time `json:"at"`
	Error       string    `json:"error,omitempty"`
}
