package app

import (
	"context"
	"errors"
	"time"

	"bosstimer/internal/notifier"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"
)

const directSendTimeout = 10 * time.Second

// directFallback queues through the notifier. When the notifier is disabled
// in config it resolves the destination and sends in the background, bounded
// by directSendTimeout.
type directFallback struct {
	queue  *notifier.Service
	sender kit.Adapter
	dir    kit.Directory
	log    logx.Logger
}

func (f directFallback) Notify(ctx context.Context, n kit.Notification) error {
	if f.queue != nil {
		err := f.queue.Notify(ctx, n)
		if !errors.Is(err, notifier.ErrDisabled) {
			return err
		}
	}
	to, ok := f.dir.Resolve(n.Destination)
	if !ok {
		return kit.ErrUnknownDestination
	}
	go func() {
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), directSendTimeout)
		defer cancel()
		if _, err := f.sender.SendText(c, to, n.Text, n.Options); err != nil {
			f.log.Warn("direct send failed", logx.String("kind", n.Kind), logx.String("dest", n.Destination), logx.Err(err))
		}
	}()
	return nil
}
