package transport

import (
	"context"
	"errors"
)

// ErrUnknownDestination is returned when a channel name cannot be resolved to a chat.
var ErrUnknownDestination = errors.New("destination not found")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ChatTitle    string
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsBot        bool
}

// Author returns the best display name for the sender.
func (m *Message) Author() string {
	switch {
	case m == nil:
		return ""
	case m.FromUsername != "":
		return m.FromUsername
	case m.FromName != "":
		return m.FromName
	default:
		return "unknown"
	}
}

type ChatTarget struct {
	ChatID int64
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Notification is addressed by channel name; the notifier resolves it to a chat.
type Notification struct {
	Destination string
	Kind        string
	Text        string
	Options     *SendOptions
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Directory maps channel names to chats and back.
type Directory interface {
	Resolve(name string) (ChatTarget, bool)
	NameOf(chatID int64) string
}
